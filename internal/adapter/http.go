package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/internal/utils"
	"github.com/openkin/circlesync/models"
)

type httpServerAdapter struct {
	client *utils.HTTPClient
	logger *logger.Logger

	mu    sync.RWMutex
	token string
}

// NewHTTPServerAdapter creates a ServerAdapter that talks to the sync server
// over HTTP/REST using the address from cfg.
func NewHTTPServerAdapter(cfg config.DeviceAdapter, log *logger.Logger) (ServerAdapter, error) {
	baseURL, err := normalizeBaseURL(cfg.HTTPAddress)
	if err != nil {
		return nil, err
	}

	client := utils.NewHTTPClient()
	client.SetBaseURL(baseURL)
	if cfg.RequestTimeout > 0 {
		client.SetTimeout(cfg.RequestTimeout)
	}

	return &httpServerAdapter{
		client: client,
		logger: log,
	}, nil
}

func (a *httpServerAdapter) SetToken(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = token
}

func (a *httpServerAdapter) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *httpServerAdapter) AcceptInvitation(ctx context.Context, token string, req models.AcceptInvitationRequest) (models.AcceptInvitationResponse, error) {
	log := a.logger.With().Str("func", "AcceptInvitation").Logger()

	var acceptResponse models.AcceptInvitationResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&acceptResponse).
		Post("/api/invitations/" + url.PathEscape(token) + "/accept")
	if err != nil {
		log.Err(err).Msg("invitation request failed")
		return models.AcceptInvitationResponse{}, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}
	if response.IsError() {
		return models.AcceptInvitationResponse{}, mapHTTPError(response)
	}

	a.SetToken(acceptResponse.Token)
	log.Info().Str("circle_id", acceptResponse.Circle.ID).Msg("invitation accepted")

	return acceptResponse, nil
}

func (a *httpServerAdapter) PushChanges(ctx context.Context, circleID string, req models.PushRequest) (models.PushResponse, error) {
	log := a.logger.With().Str("func", "PushChanges").Str("circle_id", circleID).Logger()

	var pushResponse models.PushResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+a.Token()).
		SetBody(req).
		SetResult(&pushResponse).
		Post("/api/circles/" + url.PathEscape(circleID) + "/sync")
	if err != nil {
		log.Err(err).Msg("push request failed")
		return models.PushResponse{}, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}
	if response.IsError() {
		return models.PushResponse{}, mapHTTPError(response)
	}

	log.Debug().Int("synced", pushResponse.Synced).Msg("changes pushed")

	return pushResponse, nil
}

func (a *httpServerAdapter) PullChanges(ctx context.Context, circleID string, since *int64) (models.PullResponse, error) {
	log := a.logger.With().Str("func", "PullChanges").Str("circle_id", circleID).Logger()

	request := a.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+a.Token())
	if since != nil {
		request.SetQueryParam("since", strconv.FormatInt(*since, 10))
	}

	var pullResponse models.PullResponse
	response, err := request.
		SetResult(&pullResponse).
		Get("/api/circles/" + url.PathEscape(circleID) + "/sync")
	if err != nil {
		log.Err(err).Msg("pull request failed")
		return models.PullResponse{}, fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}
	if response.IsError() {
		return models.PullResponse{}, mapHTTPError(response)
	}

	log.Debug().Int64("watermark", pullResponse.Watermark).Msg("changes pulled")

	return pullResponse, nil
}

// normalizeBaseURL validates the configured server address and strips a
// trailing slash. A bare host:port is given an http scheme.
func normalizeBaseURL(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("server address is empty")
	}

	if !strings.Contains(address, "://") {
		address = "http://" + address
	}

	parsed, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", address, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid server address %q", address)
	}

	return strings.TrimRight(parsed.String(), "/"), nil
}
