package service

import (
	"fmt"
	"math"
	"strings"
)

const (
	proteinMinPerKg = 1.8
	proteinMaxPerKg = 2.2
	fatPerKg        = 1.0
	waterPerKg      = 0.035

	Disclaimer = "This plan is an automatically generated general guideline and does not replace an individual assessment by a registered dietitian or physician."
)

// Macros 每日营养素目标（克）与饮水量（升）
type Macros struct {
	ProteinMinG int
	ProteinMaxG int
	FatG        int
	CarbsG      int
	WaterL      float64
}

// ComputeMacros 蛋白质 1.8–2.2 g/kg，脂肪 1 g/kg，碳水补足剩余热量（取蛋白质中值），不低于 0
func ComputeMacros(weightKg float64, kcal int) Macros {
	proteinMid := weightKg * (proteinMinPerKg + proteinMaxPerKg) / 2
	fat := weightKg * fatPerKg
	carbs := (float64(kcal) - proteinMid*4 - fat*9) / 4
	if carbs < 0 {
		carbs = 0
	}
	return Macros{
		ProteinMinG: int(math.Round(weightKg * proteinMinPerKg)),
		ProteinMaxG: int(math.Round(weightKg * proteinMaxPerKg)),
		FatG:        int(math.Round(fat)),
		CarbsG:      int(math.Round(carbs)),
		WaterL:      math.Round(weightKg*waterPerKg*10) / 10,
	}
}

// MealNames 4 餐为基础，5 餐加晚间加餐，6 餐再在最前加一顿早餐前餐
func MealNames(n int) []string {
	names := []string{"breakfast", "lunch", "afternoon snack", "dinner"}
	switch n {
	case 5:
		names = append(names, "evening snack")
	case 6:
		names = append([]string{"early morning meal"}, names...)
		names = append(names, "evening snack")
	}
	return names
}

// SummarySentence 文档必须以这句话开头
func SummarySentence(p *ResolvedProfile) string {
	return fmt.Sprintf("Personalized plan: %d kcal/day, goal: %s, %d meals per day.", p.Calories, p.Goal, p.Meals)
}

// BuildPrompt 生成一次性发送给模型的完整指令
func BuildPrompt(p *ResolvedProfile) string {
	m := ComputeMacros(p.WeightKg, p.Calories)
	meals := MealNames(p.Meals)

	var b strings.Builder
	b.WriteString("You are a sports nutritionist. Write a complete one-day meal plan.\n\n")
	fmt.Fprintf(&b, "Start the document with exactly this sentence on its own line:\n%s\n\n", SummarySentence(p))

	b.WriteString("Client data:\n")
	if p.Name != "" {
		fmt.Fprintf(&b, "- Name: %s\n", p.Name)
	}
	fmt.Fprintf(&b, "- Body weight: %s kg\n", formatKg(p.WeightKg))
	fmt.Fprintf(&b, "- Goal: %s\n", p.Goal)
	fmt.Fprintf(&b, "- Daily calorie target: %d kcal\n", p.Calories)
	if len(p.Foods) > 0 {
		fmt.Fprintf(&b, "- Foods the client wants to include: %s\n", strings.Join(p.Foods, ", "))
	}
	if p.Preferences != "" {
		fmt.Fprintf(&b, "- Preparation preferences: %s\n", p.Preferences)
	}

	fmt.Fprintf(&b, "\nMeals: exactly %d meals per day, named in this order: %s.\n", p.Meals, strings.Join(meals, ", "))

	b.WriteString("\nMacronutrient targets:\n")
	fmt.Fprintf(&b, "- Protein: %d-%d g/day (1.8 to 2.2 g per kg of body weight)\n", m.ProteinMinG, m.ProteinMaxG)
	fmt.Fprintf(&b, "- Fat: %d g/day (1 g per kg of body weight)\n", m.FatG)
	fmt.Fprintf(&b, "- Carbohydrates: about %d g/day, filling the remaining calories\n", m.CarbsG)

	b.WriteString("\nRules:\n")
	b.WriteString("- Every meal must contain a protein source.\n")
	b.WriteString("- Describe prepared dishes with portions; never answer with a bare list of raw ingredients.\n")
	b.WriteString("- Provide two parallel versions of the plan with equivalent macros: Option A using staple starches (rice, bread, pasta, potatoes), Option B without staple starches.\n")
	fmt.Fprintf(&b, "- Recommend a water intake of %.1f L/day (0.035 L per kg of body weight).\n", m.WaterL)

	fmt.Fprintf(&b, "\nEnd the document with this disclaimer, unchanged:\n%s\n", Disclaimer)
	return b.String()
}

func formatKg(kg float64) string {
	if kg == math.Trunc(kg) {
		return fmt.Sprintf("%.0f", kg)
	}
	return fmt.Sprintf("%.1f", kg)
}
