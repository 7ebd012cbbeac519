package mailer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// tokenCache persists the OAuth token as JSON so authorization survives
// restarts.
type tokenCache struct {
	path string
}

func (c *tokenCache) load() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read token cache: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, nil
	}
	return &tok, nil
}

func (c *tokenCache) save(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}

// persistingTokenSource wraps a refreshing token source and writes every
// newly issued token back to the cache.
type persistingTokenSource struct {
	src   oauth2.TokenSource
	cache *tokenCache

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.cache.save(tok); err != nil {
			return tok, nil // token still valid, cache write is best-effort
		}
	}
	return tok, nil
}

// authTimeout bounds the interactive authorization flow.
const authTimeout = 5 * time.Minute

// redirectHandler receives the OAuth redirect on the loopback listener.
// Requests carrying neither state nor code (browsers also fetch things
// like /favicon.ico from the redirect host) are ignored rather than
// treated as a failed authorization.
func redirectHandler(state string, codeCh chan<- string, errCh chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") == "" && q.Get("code") == "" {
			http.NotFound(w, r)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- fmt.Errorf("oauth state mismatch")
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			errCh <- fmt.Errorf("oauth redirect missing code")
			return
		}
		fmt.Fprintln(w, "Authorization complete. You may close this window.")
		codeCh <- code
	})
}

// authorize runs the one-time interactive flow: a loopback listener
// receives the redirect, the operator visits the logged URL.
func (m *Mailer) authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("start oauth listener: %w", err)
	}
	defer ln.Close()
	cfg.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return nil, fmt.Errorf("oauth state: %w", err)
	}
	state := hex.EncodeToString(stateBytes)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	srv := &http.Server{Handler: redirectHandler(state, codeCh, errCh)}
	go srv.Serve(ln)
	defer srv.Close()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	m.logger.Info("gmail authorization needed, open this url in a browser", "url", authURL)

	authCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	var code string
	select {
	case <-authCtx.Done():
		return nil, fmt.Errorf("gmail authorization: %w", authCtx.Err())
	case err := <-errCh:
		return nil, err
	case code = <-codeCh:
	}

	tok, err := cfg.Exchange(authCtx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	m.logger.Info("gmail authorization complete")
	return tok, nil
}
