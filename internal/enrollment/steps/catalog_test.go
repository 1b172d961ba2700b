package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careon/internal/enrollment/models"
)

func boolPtr(b bool) *bool { return &b }

func onlyWhen(flag func(models.FormData) bool) Predicate { return flag }

func threeStepCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog("test",
		Definition{ID: "a", Order: 1, Collects: []string{"hasInternet"}},
		Definition{ID: "b", Order: 2, DependsOn: []string{"hasInternet"},
			Applicable: onlyWhen(func(f models.FormData) bool { return f.HasInternet != nil && !*f.HasInternet })},
		Definition{ID: "c", Order: 3},
	)
	require.NoError(t, err)
	return c
}

func TestNewCatalog(t *testing.T) {
	t.Run("sorts by order", func(t *testing.T) {
		c, err := NewCatalog("v", Definition{ID: "second", Order: 2}, Definition{ID: "first", Order: 1})
		require.NoError(t, err)
		assert.Equal(t, 0, c.IndexOf("first"))
		assert.Equal(t, 1, c.IndexOf("second"))
		assert.Equal(t, -1, c.IndexOf("missing"))
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := NewCatalog("v", Definition{ID: "a", Order: 1}, Definition{ID: "a", Order: 2})
		require.ErrorContains(t, err, "duplicate step id")
	})

	t.Run("rejects shared order", func(t *testing.T) {
		_, err := NewCatalog("v", Definition{ID: "a", Order: 1}, Definition{ID: "b", Order: 1})
		require.ErrorContains(t, err, "share order")
	})

	t.Run("rejects forward references", func(t *testing.T) {
		_, err := NewCatalog("v",
			Definition{ID: "a", Order: 1, DependsOn: []string{"hasCCTV"}},
			Definition{ID: "b", Order: 2, Collects: []string{"hasCCTV"}},
		)
		require.ErrorContains(t, err, "before it is collected")
	})

	t.Run("rejects self reference", func(t *testing.T) {
		_, err := NewCatalog("v",
			Definition{ID: "a", Order: 1, Collects: []string{"hasCCTV"}, DependsOn: []string{"hasCCTV"}},
		)
		require.Error(t, err)
	})

	t.Run("rejects empty catalog", func(t *testing.T) {
		_, err := NewCatalog("v")
		require.Error(t, err)
	})
}

func TestNavigation(t *testing.T) {
	c := threeStepCatalog(t)
	withInternet := models.FormData{HasInternet: boolPtr(true)}
	withoutInternet := models.FormData{HasInternet: boolPtr(false)}

	t.Run("next skips inapplicable steps", func(t *testing.T) {
		assert.Equal(t, 2, c.Next(0, withInternet))
		assert.Equal(t, 1, c.Next(0, withoutInternet))
	})

	t.Run("next stays on last reachable step", func(t *testing.T) {
		assert.Equal(t, 2, c.Next(2, withInternet))
	})

	t.Run("previous skips inapplicable steps", func(t *testing.T) {
		assert.Equal(t, 0, c.Previous(2, withInternet))
		assert.Equal(t, 1, c.Previous(2, withoutInternet))
		assert.Equal(t, 0, c.Previous(0, withInternet))
	})

	t.Run("total follows applicability", func(t *testing.T) {
		assert.Equal(t, 2, c.Total(withInternet))
		assert.Equal(t, 3, c.Total(withoutInternet))
		assert.Equal(t, 2, c.Total(models.FormData{}))
	})

	t.Run("progress rounds ordinal position", func(t *testing.T) {
		assert.Equal(t, 50, c.Progress(0, withInternet))
		assert.Equal(t, 100, c.Progress(2, withInternet))
		assert.Equal(t, 33, c.Progress(0, withoutInternet))
		assert.Equal(t, 67, c.Progress(1, withoutInternet))
	})

	t.Run("progress is zero when nothing applies", func(t *testing.T) {
		never, err := NewCatalog("v", Definition{ID: "x", Order: 1, Applicable: func(models.FormData) bool { return false }})
		require.NoError(t, err)
		assert.Equal(t, 0, never.Progress(0, models.FormData{}))
		assert.Equal(t, -1, never.First(models.FormData{}))
	})

	t.Run("can advance only from valid in-range steps", func(t *testing.T) {
		gated, err := NewCatalog("v", Definition{ID: "x", Order: 1, Validate: func(f models.FormData) bool { return f.AgreeTerms }})
		require.NoError(t, err)
		assert.False(t, gated.CanAdvance(0, models.FormData{}))
		assert.True(t, gated.CanAdvance(0, models.FormData{AgreeTerms: true}))
		assert.False(t, gated.CanAdvance(5, models.FormData{AgreeTerms: true}))
		assert.False(t, gated.CanAdvance(-1, models.FormData{AgreeTerms: true}))
	})
}

func TestDefaultCatalog(t *testing.T) {
	forms := map[string]models.FormData{
		"unanswered":       {},
		"has both":         {HasInternet: boolPtr(true), HasCCTV: boolPtr(true)},
		"needs internet":   {HasInternet: boolPtr(false), HasCCTV: boolPtr(true)},
		"needs cctv":       {HasInternet: boolPtr(true), HasCCTV: boolPtr(false)},
		"needs everything": {HasInternet: boolPtr(false), HasCCTV: boolPtr(false)},
	}

	for name, form := range forms {
		t.Run(name+": next never lands on an inapplicable step", func(t *testing.T) {
			for i := -1; i < Default.Len(); i++ {
				next := Default.Next(i, form)
				if next == i {
					continue
				}
				step, ok := Default.Step(next)
				require.True(t, ok)
				assert.True(t, step.isApplicable(form), "step %s", step.ID)
			}
		})

		t.Run(name+": progress reaches 100 at the last applicable step", func(t *testing.T) {
			last := Default.First(form)
			for {
				next := Default.Next(last, form)
				if next == last {
					break
				}
				last = next
			}
			assert.Equal(t, StepSuccess, Default.steps[last].ID)
			assert.Equal(t, 100, Default.Progress(last, form))
		})
	}

	t.Run("install steps appear only when missing equipment", func(t *testing.T) {
		check := Default.IndexOf("internet-cctv-check")
		assert.Equal(t, Default.IndexOf("free-service"), Default.Next(check, forms["has both"]))
		assert.Equal(t, Default.IndexOf(StepInternetInstall), Default.Next(check, forms["needs internet"]))
		assert.Equal(t, Default.IndexOf(StepCCTVInstall), Default.Next(check, forms["needs cctv"]))
		assert.Equal(t, 19, Default.Total(forms["has both"]))
		assert.Equal(t, 21, Default.Total(forms["needs everything"]))
	})

	t.Run("owner info validation", func(t *testing.T) {
		idx := Default.IndexOf("owner-info")
		valid := models.FormData{
			OwnerName: "김철수", BirthDate: "900101", BirthGender: "1",
			Carrier: "skt", PhoneNumber: "010-1234-5678",
		}
		assert.True(t, Default.CanAdvance(idx, valid))

		mvno := valid
		mvno.Carrier = "mvno"
		assert.False(t, Default.CanAdvance(idx, mvno))
		mvno.MVNOCarrier = "알뜰폰"
		assert.True(t, Default.CanAdvance(idx, mvno))

		short := valid
		short.PhoneNumber = "010123"
		assert.False(t, Default.CanAdvance(idx, short))
	})

	t.Run("contact and business validation", func(t *testing.T) {
		idx := Default.IndexOf("contact-business")
		assert.True(t, Default.CanAdvance(idx, models.FormData{BusinessName: "케어온", BusinessNumber: "1234567890", Email: "a@b.kr"}))
		assert.False(t, Default.CanAdvance(idx, models.FormData{BusinessNumber: "1234567890", Email: "a@b.kr"}))
		assert.False(t, Default.CanAdvance(idx, models.FormData{BusinessName: "  ", BusinessNumber: "1234567890", Email: "a@b.kr"}))
		assert.False(t, Default.CanAdvance(idx, models.FormData{BusinessName: "케어온", BusinessNumber: "12345", Email: "a@b.kr"}))
		assert.False(t, Default.CanAdvance(idx, models.FormData{BusinessName: "케어온", BusinessNumber: "123-45-67890", Email: "ab.kr"}))
	})

	t.Run("free service needs an answer either way", func(t *testing.T) {
		idx := Default.IndexOf("free-service")
		no := false
		assert.False(t, Default.CanAdvance(idx, models.FormData{}))
		assert.True(t, Default.CanAdvance(idx, models.FormData{WantFreeService: &no}))
	})

	t.Run("store info accepts local data instead of area", func(t *testing.T) {
		idx := Default.IndexOf("store-info")
		base := models.FormData{StoreName: "카페", StoreAddress: "서울"}
		assert.False(t, Default.CanAdvance(idx, base))
		base.NeedLocalData = true
		assert.True(t, Default.CanAdvance(idx, base))
	})

	t.Run("document upload follows business type", func(t *testing.T) {
		idx := Default.IndexOf(StepDocumentUpload)
		docs := map[string]string{
			"business_registration": "u1", "id_card_front": "u2", "id_card_back": "u3", "bankbook": "u4",
		}
		assert.True(t, Default.CanAdvance(idx, models.FormData{BusinessType: "개인사업자", Documents: docs}))
		assert.False(t, Default.CanAdvance(idx, models.FormData{BusinessType: "법인사업자", Documents: docs}))
	})
}
