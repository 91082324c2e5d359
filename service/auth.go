package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/LeoTokuo/canvas-project-online/models"
	"golang.org/x/oauth2"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Provider-specific structs
type gitHubUser struct {
	Login string `json:"login"`
	ID    int    `json:"id"`
}

type googleUser struct {
	Email string `json:"email"`
	Sub   string `json:"sub"`
}

var oauthAPIs = map[string]struct {
	URL     string
	Headers map[string]string
}{
	"github": {
		URL: "https://api.github.com/user",
		Headers: map[string]string{
			"X-GitHub-Api-Version": "2022-11-28",
		},
	},
	"google": {
		URL:     "https://openidconnect.googleapis.com/v1/userinfo",
		Headers: map[string]string{},
	},
}

var oauthConfigsTemplate = map[string]*oauth2.Config{
	"github": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://github.com/login/oauth/authorize",
			TokenURL: "https://github.com/login/oauth/access_token",
		},
		Scopes: []string{""},
	},
	"google": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: []string{"openid", "email"},
	},
}

func addOauthEndpointsAndScopes(oauthConfigs map[string]*oauth2.Config) (map[string]*oauth2.Config, error) {
	for provider := range oauthConfigs {
		template, ok := oauthConfigsTemplate[provider]
		if !ok {
			return nil, fmt.Errorf("unsupported provider: %s", provider)
		}
		oauthConfigs[provider].Endpoint = template.Endpoint
		oauthConfigs[provider].Scopes = template.Scopes
	}

	return oauthConfigs, nil
}

// Login authenticates with a username and password. The fixed guest account
// is accepted without a store lookup and carries no permissions; anything
// else must match a provisioned account.
func (s *Service) Login(ctx context.Context, username string, password string) (models.Account, string, error) {
	if username == "guest" && password == "guest" {
		account := models.Account{Id: "guest", Name: "Guest", Permission: 0}
		token, err := s.CreateJWT(account)
		if err != nil {
			return models.Account{}, "", fmt.Errorf("token generation failed: %w", err)
		}
		return account, token, nil
	}

	account, err := s.Store.GetAccount(ctx, username)
	if err != nil {
		return models.Account{}, "", ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare([]byte(account.Password), []byte(password)) != 1 {
		return models.Account{}, "", ErrInvalidCredentials
	}

	account.Password = ""
	token, err := s.CreateJWT(account)
	if err != nil {
		return models.Account{}, "", fmt.Errorf("token generation failed: %w", err)
	}

	return account, token, nil
}

// LoginOAuth exchanges a provider code for a named account. Provider logins
// are treated like named guests: they can draw but not switch pages.
func (s *Service) LoginOAuth(ctx context.Context, provider string, code string) (models.Account, string, error) {
	account, err := s.handleOauth(ctx, provider, code)
	if err != nil {
		return models.Account{}, "", fmt.Errorf("oauth failed: %w", err)
	}

	token, err := s.CreateJWT(account)
	if err != nil {
		return models.Account{}, "", fmt.Errorf("token generation failed: %w", err)
	}

	return account, token, nil
}

func (s *Service) handleOauth(ctx context.Context, provider string, code string) (models.Account, error) {
	conf, ok := s.OAuthConfigs[provider]
	if !ok {
		return models.Account{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		log.Println("Error:", err)
		return models.Account{}, err
	}

	client := conf.Client(ctx, tok)
	api, ok := oauthAPIs[provider]
	if !ok {
		return models.Account{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	req, err := http.NewRequest("GET", api.URL, nil)
	if err != nil {
		log.Println("Error:", err)
		return models.Account{}, err
	}
	for k, v := range api.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Println("Error:", err)
		return models.Account{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Println("Error:", err)
		return models.Account{}, err
	}

	return parseOauthAccount(body, provider)
}

func parseOauthAccount(jsonData []byte, provider string) (models.Account, error) {
	var account models.Account

	switch provider {
	case "github":
		var gh gitHubUser
		if err := json.Unmarshal(jsonData, &gh); err != nil {
			return models.Account{}, err
		}
		account.Name = gh.Login
		account.Id = provider + "#" + strconv.Itoa(gh.ID)
	case "google":
		var g googleUser
		if err := json.Unmarshal(jsonData, &g); err != nil {
			return models.Account{}, err
		}
		account.Name = g.Email
		account.Id = provider + "#" + g.Sub
	default:
		return models.Account{}, fmt.Errorf("unsupported provider: %s", provider)
	}

	return account, nil
}

func (s *Service) CreateJWT(account models.Account) (string, error) {
	claims := jwt.MapClaims{
		"id":         account.Id,
		"name":       account.Name,
		"permission": account.Permission,
		"exp":        time.Now().Add(24 * time.Hour).Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.JWTSecret)
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

func (s *Service) VerifyJWT(tokenString string) (models.Account, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Account{}, err
	}

	if !token.Valid {
		return models.Account{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Account{}, errors.New("invalid token claims")
	}

	id, ok := claims["id"].(string)
	if !ok {
		return models.Account{}, errors.New("missing id claim")
	}

	name, ok := claims["name"].(string)
	if !ok {
		return models.Account{}, errors.New("missing name claim")
	}

	permissionFloat, ok := claims["permission"].(float64)
	if !ok {
		return models.Account{}, errors.New("missing permission claim")
	}

	return models.Account{
		Id:         id,
		Name:       name,
		Permission: int(permissionFloat),
	}, nil
}

// AuthenticateToken resolves a bearer token to the caller's account. The
// permission level rides in the token; guest and oauth accounts have no
// store row to refetch.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (models.Account, error) {
	if len(token) == 0 {
		return models.Account{}, errors.New("token not provided")
	}

	return s.VerifyJWT(token)
}
