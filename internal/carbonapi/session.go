package carbonapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkordes/grumeter/internal/domain"
)

// CreateSession starts a calculation session (POST /carbon/sessions).
func (c *Client) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (domain.CarbonSession, error) {
	s, err := do[domain.CarbonSession](ctx, c, http.MethodPost, "/carbon/sessions", req)
	if err != nil {
		return domain.CarbonSession{}, fmt.Errorf("carbonapi.Client.CreateSession: %w", err)
	}
	return s, nil
}

// SaveRoutes stores the route legs of a session.
func (c *Client) SaveRoutes(ctx context.Context, sessionID string, req domain.RoutesRequest) (domain.RoutesResponse, error) {
	resp, err := do[domain.RoutesResponse](ctx, c, http.MethodPost, sessionPath(sessionID, "routes"), req)
	if err != nil {
		return domain.RoutesResponse{}, fmt.Errorf("carbonapi.Client.SaveRoutes: %w", sessionScoped(err))
	}
	return resp, nil
}

// SaveAccommodations stores the stays of a session.
func (c *Client) SaveAccommodations(ctx context.Context, sessionID string, req domain.AccommodationsRequest) (domain.AccommodationsResponse, error) {
	resp, err := do[domain.AccommodationsResponse](ctx, c, http.MethodPost, sessionPath(sessionID, "accommodation"), req)
	if err != nil {
		return domain.AccommodationsResponse{}, fmt.Errorf("carbonapi.Client.SaveAccommodations: %w", sessionScoped(err))
	}
	return resp, nil
}

// Calculate asks the server for the session's final result.
func (c *Client) Calculate(ctx context.Context, sessionID string) (domain.CalculationResult, error) {
	res, err := do[domain.CalculationResult](ctx, c, http.MethodPost, sessionPath(sessionID, "calculate"), nil)
	if err != nil {
		return domain.CalculationResult{}, fmt.Errorf("carbonapi.Client.Calculate: %w", sessionScoped(err))
	}
	return res, nil
}

func sessionPath(sessionID, stage string) string {
	return "/carbon/sessions/" + url.PathEscape(sessionID) + "/" + stage
}
