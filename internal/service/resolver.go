package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/dieta_server/config"
	"github.com/qs3c/dieta_server/internal/model"
	"github.com/qs3c/dieta_server/internal/model/dto"
	"github.com/qs3c/dieta_server/internal/repository"
)

// 支持的每日餐数
var supportedMeals = map[int]bool{4: true, 5: true, 6: true}

// 体重和热量的合理范围，超出范围多半是单位或千分位写错（如 "1.800" kcal）
const (
	minWeightKg = 25
	maxWeightKg = 350
	minCalories = 800
	maxCalories = 6000
)

// checkRanges 只检查已填写的值
func checkRanges(weightKg float64, calories int) error {
	if weightKg > 0 && (weightKg < minWeightKg || weightKg > maxWeightKg) {
		return invalid("weight %g kg is outside the supported range (%d-%d kg)", weightKg, minWeightKg, maxWeightKg)
	}
	if calories > 0 && (calories < minCalories || calories > maxCalories) {
		return invalid("calorie target %d is outside the supported range (%d-%d kcal)", calories, minCalories, maxCalories)
	}
	return nil
}

// ResolvedProfile 合并后用于生成的档案
type ResolvedProfile struct {
	Email       string
	Name        string
	WeightKg    float64
	Goal        string
	Calories    int
	Meals       int
	Foods       []string
	Preferences string
}

type Resolver struct {
	profiles     *repository.ProfileRepository
	readyTimeout time.Duration
	pollInterval time.Duration
	defaultMeals int
}

func NewResolver(profiles *repository.ProfileRepository, cfg config.ProfileConfig) *Resolver {
	meals := cfg.DefaultMeals
	if meals <= 0 {
		meals = 4
	}
	return &Resolver{
		profiles:     profiles,
		readyTimeout: cfg.ReadyTimeout(),
		pollInterval: cfg.PollInterval(),
		defaultMeals: meals,
	}
}

// Resolve 读取已存储的档案并与请求值合并：存储值 > 请求值 > 默认值。
// 档案尚未就绪时按 pollInterval 轮询，最多等待 readyTimeout，之后使用当时读到的内容。
// 同时返回存储的原始行（不存在时为 nil）。
func (r *Resolver) Resolve(ctx context.Context, in dto.ProfileInput) (*ResolvedProfile, *model.UserProfile, error) {
	email := model.NormalizeEmail(in.Email)
	if email == "" {
		return nil, nil, &ValidationError{Missing: []string{"email"}}
	}

	stored, err := r.awaitReady(ctx, email)
	if err != nil {
		return nil, nil, err
	}

	p := merge(email, stored, in, r.defaultMeals)
	if err := validate(p); err != nil {
		return nil, stored, err
	}
	return p, stored, nil
}

func (r *Resolver) awaitReady(ctx context.Context, email string) (*model.UserProfile, error) {
	stored, err := r.read(ctx, email)
	if err != nil || ready(stored) || r.readyTimeout <= 0 {
		return stored, err
	}

	timer := time.NewTimer(r.readyTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for profile: %v", ErrUpstream, ctx.Err())
		case <-timer.C:
			return stored, nil
		case <-ticker.C:
			stored, err = r.read(ctx, email)
			if err != nil || ready(stored) {
				return stored, err
			}
		}
	}
}

func (r *Resolver) read(ctx context.Context, email string) (*model.UserProfile, error) {
	p, err := r.profiles.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read profile: %v", ErrUpstream, err)
	}
	return p, nil
}

func ready(p *model.UserProfile) bool {
	return p != nil && p.Status == model.ProfileStatusReady
}

func merge(email string, stored *model.UserProfile, in dto.ProfileInput, defaultMeals int) *ResolvedProfile {
	if stored == nil {
		stored = &model.UserProfile{}
	}
	p := &ResolvedProfile{
		Email:       email,
		Name:        pickString(stored.Name, in.Name),
		WeightKg:    stored.WeightKg,
		Goal:        pickString(stored.Goal, in.Goal),
		Calories:    pickInt(stored.CalorieTarget, in.Calories),
		Meals:       pickInt(stored.MealCount, in.Meals),
		Foods:       splitFoods(stored.Foods),
		Preferences: pickString(stored.Preferences, in.Preferences),
	}
	if p.WeightKg <= 0 {
		p.WeightKg = in.WeightKg
	}
	if len(p.Foods) == 0 {
		p.Foods = in.Foods
	}
	if p.Meals <= 0 {
		p.Meals = defaultMeals
	}
	return p
}

func validate(p *ResolvedProfile) error {
	var missing []string
	if p.WeightKg <= 0 {
		missing = append(missing, "weight")
	}
	if p.Goal == "" {
		missing = append(missing, "goal")
	}
	if p.Calories <= 0 {
		missing = append(missing, "calories")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if !supportedMeals[p.Meals] {
		return invalid("unsupported meal count %d (expected 4, 5 or 6)", p.Meals)
	}
	return checkRanges(p.WeightKg, p.Calories)
}

func pickString(stored, req string) string {
	if s := strings.TrimSpace(stored); s != "" {
		return s
	}
	return strings.TrimSpace(req)
}

func pickInt(stored, req int) int {
	if stored > 0 {
		return stored
	}
	return req
}

// JoinFoods 食物列表在档案表中以逗号分隔存储
func JoinFoods(foods []string) string {
	return strings.Join(foods, ", ")
}

func splitFoods(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
