package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	apperrors "github.com/todoshare/server-go/internal/errors"
)

const defaultWeatherBaseURL = "https://wttr.in"

// WeatherReport is the condensed view returned to clients.
type WeatherReport struct {
	City        string `json:"city"`
	Temperature string `json:"temperature"`
	Condition   string `json:"condition"`
	Humidity    string `json:"humidity"`
	Wind        string `json:"wind"`
}

// WeatherService fetches conditions from the wttr.in JSON API. The HTTP
// client is injected so the outbound call goes through the SSRF-guarded
// client configured at startup.
type WeatherService struct {
	client  *http.Client
	baseURL string
}

func NewWeatherService(client *http.Client, baseURL string) *WeatherService {
	if baseURL == "" {
		baseURL = defaultWeatherBaseURL
	}
	return &WeatherService{client: client, baseURL: baseURL}
}

type wttrResponse struct {
	CurrentCondition []struct {
		TempC       string `json:"temp_C"`
		Humidity    string `json:"humidity"`
		WindSpeed   string `json:"windspeedKmph"`
		WeatherDesc []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
}

func (s *WeatherService) Current(ctx context.Context, city string) (*WeatherReport, error) {
	if city == "" {
		city = "Beijing"
	}

	endpoint := fmt.Sprintf("%s/%s?format=j1", s.baseURL, url.PathEscape(city))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Internal("failed to create weather request").WithCause(err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.External("weather", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.External("weather", fmt.Errorf("status %d", resp.StatusCode))
	}

	var data wttrResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, apperrors.External("weather", err)
	}
	if len(data.CurrentCondition) == 0 {
		return nil, apperrors.NotFound("Weather data for this city")
	}

	current := data.CurrentCondition[0]
	condition := ""
	if len(current.WeatherDesc) > 0 {
		condition = current.WeatherDesc[0].Value
	}

	return &WeatherReport{
		City:        city,
		Temperature: current.TempC + "°C",
		Condition:   condition,
		Humidity:    current.Humidity + "%",
		Wind:        current.WindSpeed + " km/h",
	}, nil
}
