package sheets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/voidshard/cashster/pkg/crypto"
	"github.com/voidshard/cashster/pkg/domain"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// oauthState is sent along with the auth request; getting it back intact
// tells us the redirect is the answer to our request.
type oauthState struct {
	Nonce         string
	keyEncryption string
	keySignature  string
}

func newState() (*oauthState, error) {
	enckey, err := crypto.NewRandomKey()
	if err != nil {
		return nil, err
	}
	signkey, err := crypto.NewRandomKey()
	if err != nil {
		return nil, err
	}
	return &oauthState{
		Nonce:         strconv.FormatInt(time.Now().UnixNano(), 10),
		keyEncryption: enckey,
		keySignature:  signkey,
	}, nil
}

func (s *oauthState) Seal() (string, error) {
	safenonce := base64.StdEncoding.EncodeToString([]byte(s.Nonce))
	return crypto.Seal([]byte(safenonce), s.keyEncryption, s.keySignature)
}

func (s *oauthState) Verify(blob string) bool {
	plain, err := crypto.Open(blob, s.keyEncryption, s.keySignature)
	if err != nil {
		return false
	}
	nonce, err := base64.StdEncoding.DecodeString(string(plain))
	return err == nil && string(nonce) == s.Nonce
}

// DefaultAuthTimeout is how long Authorize waits for the user to come back.
const DefaultAuthTimeout = 5 * time.Minute

// Loopback runs the OAuth flow for installed apps: the user opens the
// printed URL, and the provider redirects back to a listener on localhost.
type Loopback struct {
	config *oauth2.Config
	tokens TokenStore
	port   int
	logger *zap.Logger

	// Prompt shows the user where to go. Defaults to logging the URL.
	Prompt func(url string)

	// Timeout bounds the whole flow; the listener is closed once it passes.
	Timeout time.Duration
}

// check it meets the interface
var _ Authorizer = &Loopback{}

func NewLoopback(config *oauth2.Config, tokens TokenStore, port int, logger *zap.Logger) *Loopback {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loopback{config: config, tokens: tokens, port: port, logger: logger, Timeout: DefaultAuthTimeout}
	l.Prompt = func(url string) {
		l.logger.Info("authorization needed, go to the URL to continue", zap.String("url", url))
	}
	return l
}

type codeReply struct {
	code string
	err  error
}

// Authorize blocks until the user has granted access, ctx is done or
// Timeout passes, and stores the new token.
func (l *Loopback) Authorize(ctx context.Context) error {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	state, err := newState()
	if err != nil {
		return err
	}
	cypher, err := state.Seal()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", l.port))
	if err != nil {
		return err
	}
	port := ln.Addr().(*net.TCPAddr).Port

	cfg := *l.config
	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d/", port)

	incoming := make(chan codeReply, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/favicon.ico" {
			return // *sigh*
		}

		code, err := processCodeRequest(state, r)
		select {
		case incoming <- codeReply{code: code, err: err}:
		default:
		}

		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Write([]byte("Authorized, you can close this window."))
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go srv.Serve(ln)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	l.Prompt(cfg.AuthCodeURL(cypher, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	var reply codeReply
	select {
	case reply = <-incoming:
	case <-ctx.Done():
		return ctx.Err()
	}
	if reply.err != nil {
		return reply.err
	}

	l.logger.Debug("state verified, exchanging code for token")
	tok, err := cfg.Exchange(ctx, reply.code)
	if err != nil {
		return fmt.Errorf("exchanging code: %w", err)
	}
	return l.tokens.SetToken(domain.FromOAuth2(tok))
}

func processCodeRequest(state *oauthState, r *http.Request) (string, error) {
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("%w: %s", domain.ErrAuthorizationRequired, e)
	}

	blob := q.Get("state")
	if blob == "" {
		return "", errors.New("state not returned")
	}
	if !state.Verify(blob) {
		return "", errors.New("failed to decrypt state & assert signature")
	}

	code := q.Get("code")
	if code == "" {
		return "", errors.New("code not returned")
	}
	return code, nil
}
