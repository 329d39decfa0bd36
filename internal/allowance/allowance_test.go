package allowance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/travelsaas/ratescrape/pkg/models"
)

func appendixC(t *testing.T, rows [][2]string) *models.TableData {
	t.Helper()
	var out []models.Row
	for _, r := range rows {
		out = append(out, models.Row{
			"category":     models.String(r[0]),
			"canadaUsaCad": models.String(r[1]),
			"yukonAlaska":  models.String("0"),
		})
	}
	td, err := models.Build(models.BuildInput{
		Source: "https://www.njc-cnm.gc.ca/directive/d10/v238/s659/en",
		Headers: []models.Header{
			{Label: "Category", Key: "category"},
			{Label: "Canada & USA CAD", Key: "canadaUsaCad"},
			{Label: "Yukon & Alaska", Key: "yukonAlaska"},
		},
		Rows: out,
	})
	require.NoError(t, err)
	return td
}

func standardTable(t *testing.T) *models.TableData {
	return appendixC(t, [][2]string{
		{"Breakfast", "29.05"},
		{"Meal allowance total – 100% (up to 30th day)", "122.50"},
		{"Meal allowance total – 75% (31st to 120th day)", "91.90"},
		{"Meal allowance total – 50% (121st day onward)", "61.25"},
		{"1.3 Incidental allowance – 100%", "32.08"},
		{"Incidental allowance – 75% (31st day onward)", "24.05"},
	})
}

func TestFromTable(t *testing.T) {
	r, err := FromTable(standardTable(t), DefaultColumn)
	require.NoError(t, err)
	require.Equal(t, Rates{
		MealsFull:          122.50,
		MealsSeventyFive:   91.90,
		MealsFifty:         61.25,
		IncidentalsFull:    32.08,
		IncidentalsReduced: 24.05,
	}, r)
	require.InDelta(t, 30*32.08+20*24.05, r.Incidentals(50), 1e-9)
}

func TestFromTable_ReducedIncidentalsFallBackToFull(t *testing.T) {
	r, err := FromTable(appendixC(t, [][2]string{
		{"Meal allowance total – 100% (up to 30th day)", "122.50"},
		{"Meal allowance total – 75% (31st to 120th day)", "91.90"},
		{"Meal allowance total – 50% (121st day onward)", "61.25"},
		{"Incidental expense allowance", "$32.08"},
	}), DefaultColumn)
	require.NoError(t, err)
	require.Equal(t, 32.08, r.IncidentalsFull)
	require.Equal(t, 32.08, r.IncidentalsReduced)
}

func TestFromTable_ToleratesLabelDrift(t *testing.T) {
	td := appendixC(t, [][2]string{
		{"Meal allowance total - 100% (up to the 30th day)", "100"},
		{"Meal allowance total - 75% (31st to 120th days)", "75"},
		{"Meal Allowance Total - 50% (121st day onward)", "50"},
		{"1.3 Incidental Allowance - 100 %", "30"},
	})

	r, err := FromTable(td, DefaultColumn)
	require.NoError(t, err)
	require.Equal(t, 100.0, r.MealsFull)
	require.Equal(t, 75.0, r.MealsSeventyFive)
	require.Equal(t, 50.0, r.MealsFifty)
	require.Equal(t, 30.0, r.IncidentalsFull)
}

func TestFromTable_Missing(t *testing.T) {
	_, err := FromTable(appendixC(t, [][2]string{{"Breakfast", "29.05"}}), DefaultColumn)
	require.ErrorContains(t, err, "not found")

	_, err = FromTable(appendixC(t, [][2]string{
		{"Meal allowance total – 100% (up to 30th day)", "122.50"},
		{"Meal allowance total – 75% (31st to 120th day)", "91.90"},
		{"Meal allowance total – 50% (121st day onward)", "61.25"},
	}), DefaultColumn)
	require.ErrorContains(t, err, `category "1.3 Incidental allowance - 100%" not found`)

	_, err = FromTable(standardTable(t), "international")
	require.ErrorContains(t, err, `column "international" not found`)
}

func TestMeals_Tiering(t *testing.T) {
	r := Rates{MealsFull: 122.5, MealsSeventyFive: 91.9, MealsFifty: 61.25}

	for _, n := range []int{0, 1, 29, 30, 31, 119, 120, 121, 365} {
		want := float64(min(n, 30))*r.MealsFull +
			float64(max(min(n, 120)-30, 0))*r.MealsSeventyFive +
			float64(max(n-120, 0))*r.MealsFifty
		require.InDelta(t, want, r.Meals(n), 1e-9, "days=%d", n)
	}

	segs := r.MealSegments(150)
	require.Equal(t, []int{30, 90, 30}, []int{segs[0].Days, segs[1].Days, segs[2].Days})
	require.Zero(t, r.Meals(-5))
}

func TestIncidentals(t *testing.T) {
	r := Rates{IncidentalsFull: 32, IncidentalsReduced: 24}
	require.Equal(t, 32.0*30+24.0*10, r.Incidentals(40))
	require.Equal(t, 32.0*12, r.Incidentals(12))
}

func TestFromTable_TierPercentMustAgree(t *testing.T) {
	_, err := FromTable(appendixC(t, [][2]string{
		{"Meal allowance total – 75% (31st to 120th day)", "91.90"},
		{"Meal allowance total – 50% (121st day onward)", "61.25"},
		{"1.3 Incidental allowance – 100%", "32.08"},
	}), DefaultColumn)
	require.ErrorContains(t, err, `category "Meal allowance total - 100% (up to 30th day)" not found`)
}
