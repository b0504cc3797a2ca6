package viacep

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vithxrlorencetti/TransactionsAPI/internal/usecase"
)

// Client resolves Brazilian postal codes through the ViaCep API.
type Client struct {
	baseURL string
	client  *http.Client
	log     *logrus.Logger
}

// NewClient initializes a new ViaCep client.
func NewClient(baseURL string, log *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

type response struct {
	PostalCode   string `json:"cep"`
	Street       string `json:"logradouro"`
	Complement   string `json:"complemento"`
	Neighborhood string `json:"bairro"`
	City         string `json:"localidade"`
	State        string `json:"uf"`
	Error        bool   `json:"erro"`
}

// Lookup resolves a postal code. A nil result means the postal code does
// not exist; ViaCep reports that with a 200 response carrying "erro": true.
func (c *Client) Lookup(ctx context.Context, postalCode string) (*usecase.Address, error) {
	url := fmt.Sprintf("%s/ws/%s/json/", c.baseURL, postalCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("viacep request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warnf("viacep returned status %d for postal code %s", resp.StatusCode, postalCode)
		return nil, nil
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode viacep response: %w", err)
	}
	if body.Error {
		return nil, nil
	}

	return &usecase.Address{
		Street:       body.Street,
		Complement:   body.Complement,
		Neighborhood: body.Neighborhood,
		City:         body.City,
		State:        body.State,
	}, nil
}
