package fetch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5" // #nosec G501 -- the HNAP handshake is defined over HMAC-MD5
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

const (
	hnapEndpoint  = "/HNAP1/"
	hnapNamespace = "http://purenetworks.com/HNAP1/"

	// hnapTimeModulo keeps the auth timestamp inside the 32-bit arithmetic
	// the modem's login JavaScript performs
	hnapTimeModulo = 2_000_000_000_000

	// hnapDefaultKey is the private key used before login completes
	hnapDefaultKey = "withoutloginkey"
)

// hnapSession performs the HNAP challenge/response handshake and batched
// action calls for fetch specs declaring AuthHNAP. The private key survives for
// the lifetime of the fetcher so repeated cycles reuse the session until the
// modem expires it.
type hnapSession struct {
	f *HTTPFetcher

	mu         sync.Mutex
	privateKey string
}

func newHNAPSession(f *HTTPFetcher) *hnapSession {
	return &hnapSession{f: f}
}

// hmacMD5Upper matches the hex_hmac_md5() the modem firmware uses.
func hmacMD5Upper(key, message string) string {
	mac := hmac.New(md5.New, []byte(key))
	mac.Write([]byte(message))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// authHeader builds the HNAP_AUTH header for an action.
func authHeader(privateKey, action string) string {
	soapAction := fmt.Sprintf("%q", hnapNamespace+action)
	ts := fmt.Sprintf("%d", time.Now().UnixMilli()%hnapTimeModulo)
	return hmacMD5Upper(privateKey, ts+soapAction) + " " + ts
}

// fetch runs the batched GetMultipleHNAPs call the spec declares, logging in
// first if no session is established yet.
func (s *hnapSession) fetch(ctx context.Context, spec modem.FetchSpec) ([]byte, error) {
	if len(spec.HNAPActions) == 0 {
		return nil, fmt.Errorf("fetch spec %s declares hnap auth but no actions", spec.Path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.privateKey == "" {
		if err := s.login(ctx); err != nil {
			return nil, fmt.Errorf("hnap login: %w", err)
		}
	}

	body, err := s.callMultiple(ctx, spec.HNAPActions)
	if err == nil && strings.Contains(string(body), "UN-AUTH") {
		// Session expired between cycles; redo the handshake once.
		if err := s.login(ctx); err != nil {
			return nil, fmt.Errorf("hnap re-login: %w", err)
		}
		body, err = s.callMultiple(ctx, spec.HNAPActions)
	}
	return body, err
}

// login performs the two-step challenge/response handshake: request a
// challenge for the username, derive the private key from the public key,
// password and challenge, then answer with the hashed password.
func (s *hnapSession) login(ctx context.Context) error {
	resp, err := s.call(ctx, hnapDefaultKey, "Login", map[string]string{
		"Action":   "request",
		"Username": s.f.opts.Username,
	})
	if err != nil {
		return err
	}

	result := gjson.GetBytes(resp, "LoginResponse")
	publicKey := result.Get("PublicKey").String()
	challenge := result.Get("Challenge").String()
	if publicKey == "" || challenge == "" {
		return fmt.Errorf("challenge response missing PublicKey or Challenge")
	}

	privateKey := hmacMD5Upper(publicKey+s.f.opts.Password, challenge)
	loginPassword := hmacMD5Upper(privateKey, challenge)

	resp, err = s.call(ctx, privateKey, "Login", map[string]string{
		"Action":        "login",
		"Username":      s.f.opts.Username,
		"LoginPassword": loginPassword,
	})
	if err != nil {
		return err
	}

	loginResult := gjson.GetBytes(resp, "LoginResponse.LoginResult").String()
	if loginResult != "OK" && loginResult != "success" {
		return fmt.Errorf("login rejected: %q", loginResult)
	}

	s.privateKey = privateKey
	return nil
}

// callMultiple batches actions into one GetMultipleHNAPs request.
func (s *hnapSession) callMultiple(ctx context.Context, actions []string) ([]byte, error) {
	params := make(map[string]map[string]string, len(actions))
	for _, action := range actions {
		params[action] = map[string]string{}
	}
	return s.call(ctx, s.privateKey, "GetMultipleHNAPs", params)
}

// call posts one HNAP action with the SOAPAction and HNAP_AUTH headers set.
func (s *hnapSession) call(ctx context.Context, privateKey, action string, params any) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{action: params})
	if err != nil {
		return nil, fmt.Errorf("failed to encode hnap request: %w", err)
	}

	url := s.f.opts.BaseURL + hnapEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SOAPAction", fmt.Sprintf("%q", hnapNamespace+action))
	req.Header.Set("HNAP_AUTH", authHeader(privateKey, action))

	resp, err := s.f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
