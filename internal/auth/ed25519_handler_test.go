package auth

import (
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEd25519ChallengeHandler(t *testing.T) {
	provider, _ := newTestProvider(t)
	handler := Ed25519ChallengeHandler(provider)

	testCases := []struct {
		name               string
		method             string
		expectedStatus     int
		expectNewChallenge bool
	}{
		{name: "GET returns the current challenge", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST generates a new challenge", method: http.MethodPost, expectedStatus: http.StatusOK, expectNewChallenge: true},
		{name: "PUT method not allowed", method: http.MethodPut, expectedStatus: http.StatusMethodNotAllowed},
		{name: "DELETE method not allowed", method: http.MethodDelete, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			original := provider.Challenge()

			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, httptest.NewRequest(tc.method, "/auth/challenge", nil))

			if recorder.Code != tc.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tc.expectedStatus, recorder.Code)
			}
			if tc.expectedStatus != http.StatusOK {
				return
			}

			if ct := recorder.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
				t.Errorf("Expected JSON content type, got %s", ct)
			}

			var response challengeResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
				t.Fatalf("Failed to parse JSON response: %v", err)
			}
			served, err := base64.StdEncoding.DecodeString(response.Challenge)
			if err != nil {
				t.Fatalf("Challenge is not valid base64: %v", err)
			}
			if string(served) != string(provider.Challenge()) {
				t.Error("Expected the served challenge to be the current one")
			}

			changed := string(original) != string(provider.Challenge())
			if changed != tc.expectNewChallenge {
				t.Errorf("Expected challenge changed=%v, got %v", tc.expectNewChallenge, changed)
			}
		})
	}
}

func TestEd25519VerifyHandler(t *testing.T) {
	provider, keys := newTestProvider(t)
	handler := Ed25519VerifyHandler(provider)

	validSignatureB64 := keys.sign(provider)

	testCases := []struct {
		name           string
		method         string
		authHeader     string
		expectedStatus int
		expectCookie   bool
		tlsRequest     bool
	}{
		{name: "Valid signature verification", method: http.MethodPost, authHeader: validSignatureB64, expectedStatus: http.StatusOK, expectCookie: true},
		{name: "Valid signature with TLS - secure cookie", method: http.MethodPost, authHeader: validSignatureB64, expectedStatus: http.StatusOK, expectCookie: true, tlsRequest: true},
		{name: "Wrong signature", method: http.MethodPost, authHeader: base64.StdEncoding.EncodeToString([]byte("forged")), expectedStatus: http.StatusUnauthorized},
		{name: "Missing authorization header", method: http.MethodPost, expectedStatus: http.StatusUnauthorized},
		{name: "Invalid base64 signature", method: http.MethodPost, authHeader: "not-valid-base64!@#", expectedStatus: http.StatusUnauthorized},
		{name: "GET method not allowed", method: http.MethodGet, authHeader: validSignatureB64, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/auth/verify", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			if tc.tlsRequest {
				req.TLS = &tls.ConnectionState{}
			}

			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			if recorder.Code != tc.expectedStatus {
				t.Errorf("Expected status %d, got %d", tc.expectedStatus, recorder.Code)
			}

			var authCookie *http.Cookie
			for _, cookie := range recorder.Result().Cookies() {
				if cookie.Name == "auth_token" {
					authCookie = cookie
					break
				}
			}

			if !tc.expectCookie {
				if authCookie != nil {
					t.Error("Did not expect auth_token cookie, but found one")
				}
				return
			}
			if authCookie == nil {
				t.Fatal("Expected auth_token cookie, but didn't find one")
			}

			if authCookie.Path != "/" {
				t.Errorf("Expected cookie path '/', got '%s'", authCookie.Path)
			}
			if !authCookie.HttpOnly {
				t.Error("Expected cookie to be HttpOnly")
			}
			if authCookie.SameSite != http.SameSiteStrictMode {
				t.Errorf("Expected SameSite strict mode, got %v", authCookie.SameSite)
			}
			if authCookie.Secure != tc.tlsRequest {
				t.Errorf("Expected Secure=%v, got %v", tc.tlsRequest, authCookie.Secure)
			}
			if authCookie.MaxAge != 3600*24 {
				t.Errorf("Expected MaxAge 86400, got %d", authCookie.MaxAge)
			}
			if authCookie.Value != tc.authHeader {
				t.Errorf("Expected cookie value '%s', got '%s'", tc.authHeader, authCookie.Value)
			}
		})
	}
}

func TestRegisterEd25519AuthRoutes(t *testing.T) {
	provider, keys := newTestProvider(t)

	mux := http.NewServeMux()
	RegisterEd25519AuthRoutes(mux, provider)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/auth/challenge", nil))
	if recorder.Code != http.StatusOK {
		t.Errorf("Expected challenge route to answer 200, got %d", recorder.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/verify", nil)
	req.Header.Set("Authorization", keys.sign(provider))
	recorder = httptest.NewRecorder()
	mux.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("Expected verify route to answer 200, got %d", recorder.Code)
	}
}
