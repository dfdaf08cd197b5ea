package dto

import (
	"strings"

	"github.com/qs3c/dieta_server/internal/model"
)

// ProfileRequest 档案字段。不同调用方使用不同字段名（前端表单为葡语字段），
// 只在 Normalize 中统一处理别名，业务层只看到 ProfileInput。
type ProfileRequest struct {
	Email string `json:"email"`

	Name string `json:"name"`
	Nome string `json:"nome"`

	Weight FlexNumber `json:"weight"`
	Peso   FlexNumber `json:"peso"`

	Goal     string `json:"goal"`
	Objetivo string `json:"objetivo"`

	Calories FlexNumber `json:"calories"`
	Calorias FlexNumber `json:"calorias"`

	Meals     FlexNumber `json:"meals"`
	Refeicoes FlexNumber `json:"refeicoes"`

	Foods     FlexStrings `json:"foods"`
	Alimentos FlexStrings `json:"alimentos"`

	Preferences  string `json:"preferences"`
	Preferencias string `json:"preferencias"`
}

// ProfileInput 规范化后的档案输入，零值表示未提供
type ProfileInput struct {
	Email       string
	Name        string
	WeightKg    float64
	Goal        string
	Calories    int
	Meals       int
	Foods       []string
	Preferences string
}

// Normalize 合并别名字段，英文字段优先
func (r *ProfileRequest) Normalize() ProfileInput {
	foods := []string(r.Foods)
	if len(foods) == 0 {
		foods = []string(r.Alimentos)
	}
	return ProfileInput{
		Email:       model.NormalizeEmail(r.Email),
		Name:        firstString(r.Name, r.Nome),
		WeightKg:    firstNumber(r.Weight, r.Peso),
		Goal:        firstString(r.Goal, r.Objetivo),
		Calories:    int(firstNumber(r.Calories, r.Calorias) + 0.5),
		Meals:       int(firstNumber(r.Meals, r.Refeicoes) + 0.5),
		Foods:       foods,
		Preferences: firstString(r.Preferences, r.Preferencias),
	}
}

func firstString(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstNumber(values ...FlexNumber) float64 {
	for _, v := range values {
		if v.Set && v.Value > 0 {
			return v.Value
		}
	}
	return 0
}

// ProfileResponse 档案注册响应
type ProfileResponse struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}
