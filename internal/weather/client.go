package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const apiURL = "https://api.weatherapi.com/v1/current.json"

// Observation is the current-conditions snapshot the poller works with.
type Observation struct {
	TempC      float64
	Humidity   float64
	PressureMb float64
}

type apiResponse struct {
	Current struct {
		TempC      float64 `json:"temp_c"`
		Humidity   float64 `json:"humidity"`
		PressureMb float64 `json:"pressure_mb"`
	} `json:"current"`
}

// fetchCurrent queries weatherapi.com for the configured coordinates.
func (s *Service) fetchCurrent(ctx context.Context) (Observation, error) {
	if s.cfg.APIKey == "" {
		return Observation{}, fmt.Errorf("weather api key is not configured")
	}

	q := url.Values{}
	q.Set("key", s.cfg.APIKey)
	q.Set("q", fmt.Sprintf("%f,%f", s.cfg.Lat, s.cfg.Lon))
	q.Set("aqi", "no")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return Observation{}, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return Observation{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Observation{}, fmt.Errorf("weather api status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Observation{}, err
	}
	return Observation{
		TempC:      body.Current.TempC,
		Humidity:   body.Current.Humidity,
		PressureMb: body.Current.PressureMb,
	}, nil
}
