package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/danilaloko/eco-bot/internal/domain"
	"github.com/danilaloko/eco-bot/internal/events"
	"github.com/danilaloko/eco-bot/internal/repository"
	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

const (
	minNameLength  = 2
	maxNameLength  = 64
	minFamilySize  = 2
	maxFamilySize  = 10
	maxChildTokens = 10
)

var (
	individualAnswers = []string{"individual", "alone", "solo", "индивидуально", "индивидуальное", "один"}
	familyAnswers     = []string{"family", "семья", "семейное", "семьей", "семьёй"}
	yesAnswers        = []string{"yes", "y", "да", "есть"}
	noAnswers         = []string{"no", "n", "нет"}
)

// RegistrationService drives the multi-step signup dialog.
type RegistrationService struct {
	base
	admins AdminDirectory
}

// RegistrationDependencies bundles collaborators for the registration service.
type RegistrationDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
	Admins     AdminDirectory
}

// RegistrationProgress reports where a user is in the signup dialog.
type RegistrationProgress struct {
	Step domain.DialogStep
	// AlreadyRegistered is set when /start is repeated by a completed user.
	AlreadyRegistered bool
	// User is set once registration is complete.
	User *domain.User
}

// NewRegistrationService constructs the service.
func NewRegistrationService(deps RegistrationDependencies) *RegistrationService {
	return &RegistrationService{
		base:   newBase(deps.Store, deps.Dispatcher, deps.Logger, deps.Clock),
		admins: deps.Admins,
	}
}

// Touch creates the user record on first contact and refreshes the handle.
func (s *RegistrationService) Touch(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	user, created, err := s.store.Repos().Users.Touch(ctx, identity)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("user first contact", zap.Int64("user_id", user.ID))
	}
	return user, nil
}

// Start begins or resumes registration. For a completed user it only
// returns to the menu, dropping any unfinished report or support dialog.
func (s *RegistrationService) Start(ctx context.Context, userID int64) (*RegistrationProgress, error) {
	var progress *RegistrationProgress
	err := s.inTx(ctx, userID, func(u *unit) error {
		user, err := u.repos.Users.Get(ctx, userID)
		if err != nil {
			return notFound(err, "user", map[string]any{"user_id": userID})
		}
		state, err := loadDialog(ctx, u.repos, userID)
		if err != nil {
			return err
		}
		if user.RegistrationCompleted {
			// Back to the menu: any report or support dialog is abandoned.
			if state != nil {
				if err := u.repos.Dialogs.Delete(ctx, userID); err != nil {
					return err
				}
			}
			progress = &RegistrationProgress{Step: domain.StepDone, AlreadyRegistered: true, User: user}
			return nil
		}
		if state != nil && state.Flow == domain.FlowRegistration {
			progress = &RegistrationProgress{Step: state.Step}
			return nil
		}

		state = domain.NewDialogState(userID, domain.FlowRegistration, domain.StepAwaitSurname)
		if err := u.repos.Dialogs.Save(ctx, state); err != nil {
			return err
		}
		progress = &RegistrationProgress{Step: state.Step}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return progress, nil
}

// Current returns the persisted dialog state, or nil when the user is idle.
func (s *RegistrationService) Current(ctx context.Context, userID int64) (*domain.DialogState, error) {
	return loadDialog(ctx, s.store.Repos(), userID)
}

// Cancel abandons whatever dialog the user is in.
func (s *RegistrationService) Cancel(ctx context.Context, userID int64) error {
	return s.store.Repos().Dialogs.Delete(ctx, userID)
}

// Advance applies one answer to the current registration step. Invalid input
// returns a validation error and leaves the state unchanged.
func (s *RegistrationService) Advance(ctx context.Context, userID int64, input string) (*RegistrationProgress, error) {
	var progress *RegistrationProgress
	err := s.inTx(ctx, userID, func(u *unit) error {
		state, err := loadDialog(ctx, u.repos, userID)
		if err != nil {
			return err
		}
		if state == nil || state.Flow != domain.FlowRegistration {
			return apperrors.ErrNoActiveDialog
		}

		next, buckets, err := applyAnswer(state, input)
		if err != nil {
			return err
		}
		if next != domain.StepDone {
			state.Step = next
			if err := u.repos.Dialogs.Save(ctx, state); err != nil {
				return err
			}
			progress = &RegistrationProgress{Step: next}
			return nil
		}

		user, err := u.repos.Users.Get(ctx, userID)
		if err != nil {
			return notFound(err, "user", map[string]any{"user_id": userID})
		}
		if err := fillProfile(user, state, buckets); err != nil {
			return err
		}
		if err := u.repos.Users.Complete(ctx, user); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return apperrors.ErrNoActiveDialog
			}
			return err
		}
		if err := u.repos.Dialogs.Delete(ctx, userID); err != nil {
			return err
		}
		u.emit(events.EventUserRegistered, events.UserRegisteredPayload{UserID: user.ID, Mode: user.Mode})
		if err := u.notifyAdmins(ctx, s.admins, domain.NotifyRegistrationDone, registeredText(user)); err != nil {
			return err
		}
		progress = &RegistrationProgress{Step: domain.StepDone, User: user}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if progress.User != nil {
		s.logger.Info("registration completed",
			zap.Int64("user_id", userID),
			zap.String("mode", string(progress.User.Mode)))
	} else {
		s.logger.Debug("registration advanced", zap.Int64("user_id", userID), zap.String("step", string(progress.Step)))
	}
	return progress, nil
}

// applyAnswer validates input for the current step, records it and returns
// the next step.
func applyAnswer(state *domain.DialogState, input string) (domain.DialogStep, []domain.ChildAgeBucket, error) {
	answer := strings.TrimSpace(input)
	switch state.Step {
	case domain.StepAwaitSurname:
		name, err := ParseName(answer)
		if err != nil {
			return "", nil, err
		}
		state.SetField(domain.FieldSurname, name)
		return domain.StepAwaitGivenName, nil, nil
	case domain.StepAwaitGivenName:
		name, err := ParseName(answer)
		if err != nil {
			return "", nil, err
		}
		state.SetField(domain.FieldGivenName, name)
		return domain.StepAwaitParticipationMode, nil, nil
	case domain.StepAwaitParticipationMode:
		mode, err := ParseParticipationMode(answer)
		if err != nil {
			return "", nil, err
		}
		state.SetField(domain.FieldMode, string(mode))
		if mode == domain.ParticipationIndividual {
			return domain.StepDone, nil, nil
		}
		return domain.StepAwaitFamilySize, nil, nil
	case domain.StepAwaitFamilySize:
		size, err := ParseFamilySize(answer)
		if err != nil {
			return "", nil, err
		}
		state.SetField(domain.FieldFamilySize, strconv.Itoa(size))
		return domain.StepAwaitHasChildren, nil, nil
	case domain.StepAwaitHasChildren:
		hasChildren, err := ParseYesNo(answer)
		if err != nil {
			return "", nil, err
		}
		state.SetField(domain.FieldHasChildren, strconv.FormatBool(hasChildren))
		if !hasChildren {
			return domain.StepDone, nil, nil
		}
		return domain.StepAwaitChildAges, nil, nil
	case domain.StepAwaitChildAges:
		buckets, err := ParseChildAges(answer)
		if err != nil {
			return "", nil, err
		}
		return domain.StepDone, buckets, nil
	default:
		return "", nil, apperrors.ErrNoActiveDialog.WithDetails(map[string]any{"step": state.Step})
	}
}

func fillProfile(user *domain.User, state *domain.DialogState, buckets []domain.ChildAgeBucket) error {
	user.Surname = state.Field(domain.FieldSurname)
	user.GivenName = state.Field(domain.FieldGivenName)
	user.Mode = domain.ParticipationMode(state.Field(domain.FieldMode))
	user.FamilySize = nil
	user.HasChildren = nil
	user.ChildAgeBuckets = nil

	if user.Mode == domain.ParticipationFamily {
		size, ok := state.IntField(domain.FieldFamilySize)
		if !ok {
			return apperrors.ErrInvalidFamilySize
		}
		hasChildren := state.Field(domain.FieldHasChildren) == "true"
		user.FamilySize = &size
		user.HasChildren = &hasChildren
		if hasChildren {
			user.ChildAgeBuckets = buckets
		}
	}
	if !user.FamilyFieldsConsistent() {
		return apperrors.NewValidationError("registration data is inconsistent", map[string]any{"user_id": user.ID})
	}
	return nil
}

// ParseName validates a surname or given name.
func ParseName(input string) (string, error) {
	name := strings.Join(strings.Fields(input), " ")
	length := utf8.RuneCountInString(name)
	if length < minNameLength || length > maxNameLength || strings.HasPrefix(name, "/") {
		return "", apperrors.ErrInvalidName
	}
	for _, r := range name {
		if unicode.IsLetter(r) {
			return name, nil
		}
	}
	return "", apperrors.ErrInvalidName
}

// ParseParticipationMode accepts the keyboard labels and common synonyms.
func ParseParticipationMode(input string) (domain.ParticipationMode, error) {
	answer := strings.ToLower(strings.TrimSpace(input))
	switch {
	case containsWord(individualAnswers, answer):
		return domain.ParticipationIndividual, nil
	case containsWord(familyAnswers, answer):
		return domain.ParticipationFamily, nil
	default:
		return "", apperrors.ErrInvalidParticipation
	}
}

// ParseFamilySize accepts an integer between 2 and 10.
func ParseFamilySize(input string) (int, error) {
	size, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || size < minFamilySize || size > maxFamilySize {
		return 0, apperrors.ErrInvalidFamilySize
	}
	return size, nil
}

// ParseYesNo accepts yes/no answers in English or Russian.
func ParseYesNo(input string) (bool, error) {
	answer := strings.ToLower(strings.TrimSpace(input))
	switch {
	case containsWord(yesAnswers, answer):
		return true, nil
	case containsWord(noAnswers, answer):
		return false, nil
	default:
		return false, apperrors.ErrInvalidChildrenAnswer
	}
}

// ParseChildAges accepts ages in years or bucket labels separated by commas
// or spaces, and returns the distinct buckets in ascending order.
func ParseChildAges(input string) ([]domain.ChildAgeBucket, error) {
	tokens := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	if len(tokens) == 0 || len(tokens) > maxChildTokens {
		return nil, apperrors.ErrInvalidChildAges
	}
	buckets := make([]domain.ChildAgeBucket, 0, len(tokens))
	for _, token := range tokens {
		bucket, ok := parseChildToken(token)
		if !ok {
			return nil, apperrors.ErrInvalidChildAges.WithDetails(map[string]any{"token": token})
		}
		buckets = append(buckets, bucket)
	}
	return domain.SortBuckets(buckets), nil
}

func parseChildToken(token string) (domain.ChildAgeBucket, bool) {
	for _, bucket := range domain.ChildAgeBuckets {
		if token == string(bucket) {
			return bucket, true
		}
	}
	age, err := strconv.Atoi(token)
	if err != nil {
		return "", false
	}
	return domain.BucketForAge(age)
}

func containsWord(words []string, value string) bool {
	for _, w := range words {
		if w == value {
			return true
		}
	}
	return false
}

func registeredText(user *domain.User) string {
	if user.Mode == domain.ParticipationFamily && user.FamilySize != nil {
		return fmt.Sprintf("New participant: %s (@%s), family of %d", user.FullName(), user.Username, *user.FamilySize)
	}
	return fmt.Sprintf("New participant: %s (@%s), individual", user.FullName(), user.Username)
}
