package core

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	_ "time/tzdata"

	goerrors "github.com/goliatone/go-errors"
)

const MaxDisplayNameLength = 100

func (s *Service) GetProfile(ctx context.Context, authUserID string) (UserProfile, error) {
	if s.profileStore == nil {
		return UserProfile{}, s.mapError(ErrProfileNotFound)
	}
	authUserID = strings.TrimSpace(authUserID)
	if authUserID == "" {
		return UserProfile{}, s.mapError(NewBadInputError("user id is required"))
	}
	profile, err := s.profileStore.GetOrCreate(ctx, authUserID)
	if err != nil {
		return UserProfile{}, s.mapError(err)
	}
	return profile, nil
}

func (s *Service) UpdateProfile(ctx context.Context, in UpdateProfileInput) (profile UserProfile, err error) {
	op := s.startOperation(ctx, "update_profile", map[string]any{"user_id": in.AuthUserID})
	defer func() { op.end(err) }()

	if s.profileStore == nil {
		err = s.mapError(ErrProfileNotFound)
		return UserProfile{}, err
	}
	in.AuthUserID = strings.TrimSpace(in.AuthUserID)
	if in.AuthUserID == "" {
		err = s.mapError(NewBadInputError("user id is required"))
		return UserProfile{}, err
	}
	problems := make([]goerrors.FieldError, 0)
	if in.DisplayName != nil {
		trimmed := strings.TrimSpace(*in.DisplayName)
		if utf8.RuneCountInString(trimmed) > MaxDisplayNameLength {
			problems = append(problems, goerrors.FieldError{
				Field:   "display_name",
				Message: "must be at most 100 characters",
			})
		}
		in.DisplayName = &trimmed
	}
	if in.Timezone != nil {
		zone := strings.TrimSpace(*in.Timezone)
		if zone == "" {
			zone = DefaultTimezone
		}
		if _, loadErr := time.LoadLocation(zone); loadErr != nil {
			problems = append(problems, goerrors.FieldError{
				Field:   "timezone",
				Message: "unknown IANA time zone",
			})
		}
		in.Timezone = &zone
	}
	if len(problems) > 0 {
		err = s.mapError(NewValidationError("invalid profile", problems...))
		return UserProfile{}, err
	}
	if _, err = s.profileStore.GetOrCreate(ctx, in.AuthUserID); err != nil {
		err = s.mapError(err)
		return UserProfile{}, err
	}
	profile, err = s.profileStore.Update(ctx, in)
	if err != nil {
		err = s.mapError(err)
		return UserProfile{}, err
	}
	return profile, nil
}
