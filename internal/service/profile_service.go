package service

import (
	"context"
	"fmt"

	"github.com/qs3c/dieta_server/internal/model"
	"github.com/qs3c/dieta_server/internal/model/dto"
	"github.com/qs3c/dieta_server/internal/repository"
)

type ProfileService struct {
	profiles *repository.ProfileRepository
}

func NewProfileService(profiles *repository.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// Register 保存前端注册的档案并置为 ready，解析器据此停止等待
func (s *ProfileService) Register(ctx context.Context, in dto.ProfileInput) (*dto.ProfileResponse, error) {
	email := model.NormalizeEmail(in.Email)
	if email == "" {
		return nil, &ValidationError{Missing: []string{"email"}}
	}
	if in.Meals != 0 && !supportedMeals[in.Meals] {
		return nil, invalid("unsupported meal count %d (expected 4, 5 or 6)", in.Meals)
	}
	if err := checkRanges(in.WeightKg, in.Calories); err != nil {
		return nil, err
	}

	err := s.profiles.SaveProfile(ctx, &model.UserProfile{
		Email:         email,
		Name:          in.Name,
		WeightKg:      in.WeightKg,
		Goal:          in.Goal,
		CalorieTarget: in.Calories,
		MealCount:     in.Meals,
		Foods:         JoinFoods(in.Foods),
		Preferences:   in.Preferences,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: save profile: %v", ErrUpstream, err)
	}
	return &dto.ProfileResponse{Email: email, Status: model.ProfileStatusReady}, nil
}
