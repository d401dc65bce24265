package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/internal/store"
	"github.com/openkin/circlesync/internal/utils"
	"github.com/openkin/circlesync/models"
)

// invitationService is the concrete implementation of InvitationService.
//
// Accepting an invitation doubles as account bootstrap: an invitee with no
// account gets one created from the invitation's email and the supplied
// password, an invitee with an account authenticates against it. Either way
// the token is consumed exactly once.
type invitationService struct {
	invitations store.InvitationRepository
	users       store.UserRepository
	circles     store.CircleRepository
	auth        AuthService
	logger      *logger.Logger
}

// NewInvitationService constructs an InvitationService wired to the given
// repositories and token issuer.
func NewInvitationService(
	invitations store.InvitationRepository,
	users store.UserRepository,
	circles store.CircleRepository,
	auth AuthService,
	logger *logger.Logger,
) InvitationService {
	return &invitationService{
		invitations: invitations,
		users:       users,
		circles:     circles,
		auth:        auth,
		logger:      logger,
	}
}

// Accept implements InvitationService.
func (s *invitationService) Accept(ctx context.Context, token string, req models.AcceptInvitationRequest) (models.AcceptInvitationResponse, error) {
	log := logger.FromContext(ctx)

	if token == "" || req.Password == "" {
		return models.AcceptInvitationResponse{}, ErrInvalidDataProvided
	}

	invitation, err := s.invitations.FindInvitation(ctx, token)
	if err != nil {
		log.Err(err).Msg("invitation lookup failed")
		return models.AcceptInvitationResponse{}, fmt.Errorf("invitation lookup failed: %w", err)
	}
	if invitation.Consumed || invitation.Expired(time.Now()) {
		log.Warn().Str("circle_id", invitation.CircleID).Msg("invitation already consumed or expired")
		return models.AcceptInvitationResponse{}, store.ErrInvitationInvalid
	}

	user, err := s.resolveInvitee(ctx, invitation.Email, req.Password)
	if err != nil {
		return models.AcceptInvitationResponse{}, err
	}

	if _, err = s.invitations.ConsumeInvitation(ctx, token, user.UserID); err != nil {
		log.Err(err).Str("circle_id", invitation.CircleID).Int64("user_id", user.UserID).Msg("invitation consumption failed")
		return models.AcceptInvitationResponse{}, fmt.Errorf("invitation consumption failed: %w", err)
	}

	circle, err := s.circles.GetCircle(ctx, invitation.CircleID)
	if err != nil {
		log.Err(err).Str("circle_id", invitation.CircleID).Msg("circle lookup failed")
		return models.AcceptInvitationResponse{}, fmt.Errorf("circle lookup failed: %w", err)
	}

	sessionToken, err := s.auth.CreateToken(ctx, user)
	if err != nil {
		log.Err(err).Int64("user_id", user.UserID).Msg("session token creation failed")
		return models.AcceptInvitationResponse{}, fmt.Errorf("session token creation failed: %w", err)
	}

	log.Info().
		Str("circle_id", circle.ID).
		Int64("user_id", user.UserID).
		Str("role", string(invitation.Role)).
		Msg("invitation accepted")

	return models.AcceptInvitationResponse{
		Token:  sessionToken.String(),
		User:   user,
		Circle: circle,
	}, nil
}

// resolveInvitee finds the account for the invitation email or bootstraps a
// new one. Existing accounts must authenticate with their password.
func (s *invitationService) resolveInvitee(ctx context.Context, email, password string) (models.User, error) {
	log := logger.FromContext(ctx)

	user, err := s.users.FindUserByEmail(ctx, email)
	if err == nil {
		if !utils.CheckPasswordHash(password, user.PasswordHash) {
			log.Warn().Int64("user_id", user.UserID).Msg("wrong password on invitation accept")
			return models.User{}, ErrWrongPassword
		}
		return user, nil
	}
	if !errors.Is(err, store.ErrNoUserWasFound) {
		log.Err(err).Msg("user lookup failed")
		return models.User{}, fmt.Errorf("user lookup failed: %w", err)
	}

	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("password hashing failed: %w", err)
	}

	created, err := s.users.CreateUser(ctx, models.User{
		Email:        email,
		Name:         email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		log.Err(err).Msg("user bootstrap failed")
		return models.User{}, fmt.Errorf("user bootstrap failed: %w", err)
	}
	log.Info().Int64("user_id", created.UserID).Msg("bootstrapped account for invitee")

	return created, nil
}
