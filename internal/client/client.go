// Package client holds thin HTTP clients for the collaborator services the
// saga consults: user lookup and product/catalog lookup.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotFound means the collaborator answered 404 for the requested id.
var ErrNotFound = errors.New("not found")

const requestTimeout = 5 * time.Second

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

type UserClient struct {
	baseURL string
	http    *http.Client
}

func NewUserClient(baseURL string, httpClient *http.Client) *UserClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &UserClient{baseURL: baseURL, http: httpClient}
}

func (c *UserClient) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := getJSON(ctx, c.http, c.baseURL+"/internal/users/"+id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

type ProductClient struct {
	baseURL string
	http    *http.Client
}

func NewProductClient(baseURL string, httpClient *http.Client) *ProductClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &ProductClient{baseURL: baseURL, http: httpClient}
}

func (c *ProductClient) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	if err := getJSON(ctx, c.http, c.baseURL+"/internal/products/"+id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func getJSON(ctx context.Context, httpClient *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
