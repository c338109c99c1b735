package wallet

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// State is the deep-link session lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateAwaitingConnect
	StateConnected
	StateAwaitingSign
	StateAwaitingDisconnect
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingConnect:
		return "awaiting_connect"
	case StateConnected:
		return "connected"
	case StateAwaitingSign:
		return "awaiting_sign"
	case StateAwaitingDisconnect:
		return "awaiting_disconnect"
	}
	return "unknown"
}

const (
	pathConnect         = "onConnect"
	pathDisconnect      = "onDisconnect"
	pathSignTransaction = "onSignTransaction"
)

// URLOpener hands a deep-link URL to the OS. The wallet application
// responds later through an inbound redirect; nothing is awaited here.
type URLOpener interface {
	OpenURL(url string) error
}

// EventKind classifies the outcome of an inbound redirect.
type EventKind int

const (
	EventIgnored EventKind = iota
	EventConnected
	EventDisconnected
	EventSignCompleted
	EventProviderError
)

// Event is what HandleRedirect reports back to the caller (typically
// the companion orchestrator or the UI layer).
type Event struct {
	Kind              EventKind
	WalletAddress     string
	SignedTransaction []byte
	ErrorCode         string
	ErrorMessage      string
}

// Options configures the provider URL surface of a session.
type Options struct {
	BaseURL      string // wallet provider universal-link base
	AppURL       string // identifies this app to the provider
	RedirectBase string // deep-link scheme the OS routes back to us
	Cluster      string
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = "https://phantom.app/ul/v1"
	}
	if o.RedirectBase == "" {
		o.RedirectBase = "facepay://"
	}
	if o.Cluster == "" {
		o.Cluster = "devnet"
	}
}

type signOutcome struct {
	signed []byte
	err    error
}

type signRequest struct {
	redirectPath string
	done         chan signOutcome
}

type connectPayload struct {
	PublicKey string `json:"public_key"`
	Session   string `json:"session"`
}

type signPayload struct {
	Transaction string `json:"transaction"`
	Session     string `json:"session"`
}

// Session owns one wallet connection: the ephemeral key pair, the
// shared secret derived at connect time and the provider session token.
// All fields change together under the session mutex, so a concurrent
// reader never observes a partially updated session. Deep-link
// round-trips resolve only through HandleRedirect; no operation blocks
// waiting for the wallet except RequestSignature, which suspends on a
// channel until its redirect arrives or the context is cancelled.
type Session struct {
	mu              sync.Mutex
	state           State
	keyPair         *KeyPair
	sharedSecret    *[32]byte
	remotePublicKey *[32]byte
	sessionToken    string
	walletAddress   string
	pendingSign     *signRequest

	opts   Options
	opener URLOpener
	logger *logrus.Logger
}

func NewSession(opts Options, opener URLOpener) *Session {
	opts.defaults()
	return &Session{
		state:  StateDisconnected,
		opts:   opts,
		opener: opener,
		logger: logrus.WithField("service", "wallet-session").Logger,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected || s.state == StateAwaitingSign
}

func (s *Session) WalletAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walletAddress
}

func (s *Session) SessionToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionToken
}

func (s *Session) redirectLink(path string) string {
	base := s.opts.RedirectBase
	if !strings.HasSuffix(base, "/") && !strings.HasSuffix(base, "://") {
		base += "/"
	}
	return base + path
}

func (s *Session) providerURL(action string, params url.Values) string {
	return s.opts.BaseURL + "/" + action + "?" + params.Encode()
}

// Connect generates a fresh ephemeral key pair, builds the provider
// authorization URL and hands it to the OS. Fire-and-forget: the
// session sits in awaiting_connect until the onConnect redirect fires.
func (s *Session) Connect() error {
	s.mu.Lock()
	keyPair, err := GenerateKeyPair()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	// a reconnect invalidates the secret any in-flight sign round-trip
	// depends on, so the waiting caller is released now
	if s.pendingSign != nil {
		s.pendingSign.done <- signOutcome{err: ErrNotConnected}
		s.pendingSign = nil
	}
	// regenerate, never mutate in place: any prior secret is dropped
	s.keyPair = keyPair
	s.sharedSecret = nil
	s.remotePublicKey = nil
	s.sessionToken = ""
	s.walletAddress = ""
	s.state = StateAwaitingConnect

	params := url.Values{}
	params.Set("dapp_encryption_public_key", EncodeBase58(keyPair.PublicKey[:]))
	params.Set("cluster", s.opts.Cluster)
	params.Set("app_url", s.opts.AppURL)
	params.Set("redirect_link", s.redirectLink(pathConnect))
	connectURL := s.providerURL("connect", params)
	s.mu.Unlock()

	if err := s.opener.OpenURL(connectURL); err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return fmt.Errorf("fail to open connect url, err: %w", err)
	}
	return nil
}

// Disconnect asks the wallet to tear the session down. The onDisconnect
// redirect is a courtesy notification; local state is cleared when it
// arrives (or immediately if opening the URL fails).
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.state = StateAwaitingDisconnect

	params := url.Values{}
	params.Set("redirect_link", s.redirectLink(pathDisconnect))
	disconnectURL := s.providerURL("disconnect", params)
	s.mu.Unlock()

	if err := s.opener.OpenURL(disconnectURL); err != nil {
		s.mu.Lock()
		s.state = StateConnected
		s.mu.Unlock()
		return fmt.Errorf("fail to open disconnect url, err: %w", err)
	}
	return nil
}

// RequestSignature encrypts the serialized unsigned transaction with
// the session secret, emits the signTransaction deep link and suspends
// until the matching redirect resolves it. At most one sign request may
// be outstanding per session.
func (s *Session) RequestSignature(ctx context.Context, unsignedTx []byte) ([]byte, error) {
	s.mu.Lock()
	if s.state == StateAwaitingSign || s.pendingSign != nil {
		s.mu.Unlock()
		return nil, ErrSignInProgress
	}
	if s.state != StateConnected || s.sharedSecret == nil {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}

	payload := signPayload{
		Transaction: EncodeBase58(unsignedTx),
		Session:     s.sessionToken,
	}
	nonce, data, err := EncryptPayload(payload, s.sharedSecret)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	params := url.Values{}
	params.Set("dapp_encryption_public_key", EncodeBase58(s.keyPair.PublicKey[:]))
	params.Set("nonce", nonce)
	params.Set("redirect_link", s.redirectLink(pathSignTransaction))
	params.Set("payload", data)
	signURL := s.providerURL("signTransaction", params)

	req := &signRequest{
		redirectPath: pathSignTransaction,
		done:         make(chan signOutcome, 1),
	}
	s.pendingSign = req
	s.state = StateAwaitingSign
	s.mu.Unlock()

	if err := s.opener.OpenURL(signURL); err != nil {
		s.abandonSignRequest(req)
		return nil, fmt.Errorf("fail to open sign url, err: %w", err)
	}

	select {
	case <-ctx.Done():
		s.abandonSignRequest(req)
		return nil, ctx.Err()
	case outcome := <-req.done:
		return outcome.signed, outcome.err
	}
}

func (s *Session) abandonSignRequest(req *signRequest) {
	s.mu.Lock()
	if s.pendingSign == req {
		s.pendingSign = nil
		s.state = StateConnected
	}
	s.mu.Unlock()
}

// HandleRedirect decodes an inbound deep-link redirect. The redirect is
// classified by path suffix before anything else; unrecognized paths
// are ignored since the OS may deliver unrelated links to the same
// handler. Each accepted redirect is a single atomic session update:
// on any decode or decryption failure the state held before the
// awaited transition is restored.
func (s *Session) HandleRedirect(rawURL string) (Event, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Event{Kind: EventIgnored}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	params := u.Query()

	// provider-side rejection bypasses decryption entirely
	if code := params.Get("errorCode"); code != "" {
		return s.handleProviderError(code, params.Get("errorMessage")), nil
	}

	switch redirectPath(u) {
	case pathConnect:
		return s.handleConnectResponse(params)
	case pathDisconnect:
		return s.handleDisconnectResponse(), nil
	case pathSignTransaction:
		return s.handleSignResponse(params)
	default:
		return Event{Kind: EventIgnored}, nil
	}
}

// redirectPath extracts the acting path segment. Custom-scheme deep
// links ("facepay://onConnect") parse with the action as host; https
// links carry it as the last path element.
func redirectPath(u *url.URL) string {
	if p := strings.Trim(u.Path, "/"); p != "" {
		parts := strings.Split(p, "/")
		return parts[len(parts)-1]
	}
	return u.Host
}

func (s *Session) handleProviderError(code, message string) Event {
	s.mu.Lock()
	switch s.state {
	case StateAwaitingConnect:
		s.state = StateDisconnected
	case StateAwaitingSign:
		if s.pendingSign != nil {
			s.pendingSign.done <- signOutcome{err: fmt.Errorf("wallet rejected request: %s (%s)", message, code)}
			s.pendingSign = nil
		}
		s.state = StateConnected
	case StateAwaitingDisconnect:
		s.state = StateConnected
	}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"errorCode":    code,
		"errorMessage": message,
	}).Warn("wallet provider returned an error")
	return Event{Kind: EventProviderError, ErrorCode: code, ErrorMessage: message}
}

func (s *Session) handleConnectResponse(params url.Values) (Event, error) {
	remoteKeyB58 := params.Get("phantom_encryption_public_key")
	nonce := params.Get("nonce")
	data := params.Get("data")
	if remoteKeyB58 == "" || nonce == "" || data == "" {
		return Event{Kind: EventIgnored}, ErrMalformedResponse
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a connect response is only meaningful while one is awaited; stray
	// or duplicate deliveries must not disturb an established session
	if s.state != StateAwaitingConnect || s.keyPair == nil {
		return Event{Kind: EventIgnored}, nil
	}

	remoteKey, err := DecodeKey(remoteKeyB58)
	if err != nil {
		s.state = StateDisconnected
		return Event{Kind: EventIgnored}, err
	}
	secret := DeriveSharedSecret(s.keyPair.SecretKey, remoteKey)

	var payload connectPayload
	if err := DecryptPayload(data, nonce, secret, &payload); err != nil {
		// revert to the pre-connect state, leaving no partial secret
		s.state = StateDisconnected
		return Event{Kind: EventIgnored}, err
	}

	s.sharedSecret = secret
	s.remotePublicKey = remoteKey
	s.sessionToken = payload.Session
	s.walletAddress = payload.PublicKey
	s.state = StateConnected

	s.logger.WithField("wallet", payload.PublicKey).Info("wallet connected")
	return Event{Kind: EventConnected, WalletAddress: payload.PublicKey}, nil
}

func (s *Session) handleDisconnectResponse() Event {
	s.mu.Lock()
	if s.pendingSign != nil {
		s.pendingSign.done <- signOutcome{err: ErrNotConnected}
		s.pendingSign = nil
	}
	s.keyPair = nil
	s.sharedSecret = nil
	s.remotePublicKey = nil
	s.sessionToken = ""
	s.walletAddress = ""
	s.state = StateDisconnected
	s.mu.Unlock()

	s.logger.Info("wallet disconnected")
	return Event{Kind: EventDisconnected}
}

func (s *Session) handleSignResponse(params url.Values) (Event, error) {
	nonce := params.Get("nonce")
	data := params.Get("data")
	if nonce == "" || data == "" {
		return Event{Kind: EventIgnored}, ErrMalformedResponse
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// the provider legitimately omits its encryption public key on sign
	// responses, so decryption always uses the established secret
	if s.sharedSecret == nil {
		return Event{Kind: EventIgnored}, ErrNotConnected
	}

	signed, err := decryptSignedTransaction(data, nonce, s.sharedSecret)
	if err != nil {
		if s.pendingSign != nil {
			s.pendingSign.done <- signOutcome{err: err}
			s.pendingSign = nil
		}
		if s.state == StateAwaitingSign {
			s.state = StateConnected
		}
		return Event{Kind: EventIgnored}, err
	}

	if s.pendingSign != nil {
		s.pendingSign.done <- signOutcome{signed: signed}
		s.pendingSign = nil
	}
	if s.state == StateAwaitingSign {
		s.state = StateConnected
	}
	return Event{Kind: EventSignCompleted, SignedTransaction: signed, WalletAddress: s.walletAddress}, nil
}
