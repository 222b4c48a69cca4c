package callback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golden-vcr/gatekeeper/internal/events"
	"github.com/golden-vcr/gatekeeper/internal/session"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func Test_Server_handleCallback(t *testing.T) {
	tests := []struct {
		name              string
		query             string
		exchangeErr       error
		wantStatus        int
		wantBody          string
		wantLocation      string
		wantExchangeCalls int
		wantToken         string
		wantEvents        []events.Type
	}{
		{
			"missing state is rejected",
			"?code=abc",
			nil,
			400,
			"'state' value not found in URL query params",
			"",
			0,
			"",
			nil,
		},
		{
			"mismatched state is rejected without calling the provider",
			"?code=abc&state=forged",
			nil,
			400,
			"CSRF token verification failed",
			"",
			0,
			"",
			[]events.Type{events.TypeLoginRejected},
		},
		{
			"missing code is rejected",
			"?state=s3cr3t",
			nil,
			400,
			"'code' value not found in URL query params",
			"",
			0,
			"",
			nil,
		},
		{
			"denied consent is reported",
			"?state=s3cr3t&error=access_denied",
			nil,
			401,
			"authorization was not granted: access_denied",
			"",
			0,
			"",
			nil,
		},
		{
			"failed exchange leaves no token",
			"?code=used-code&state=s3cr3t",
			fmt.Errorf(`oauth2: "invalid_grant" "Code was already redeemed."`),
			502,
			"failed to complete login",
			"",
			1,
			"",
			nil,
		},
		{
			"valid callback stores token and redirects home",
			"?code=abc&state=s3cr3t",
			nil,
			303,
			"",
			"/",
			1,
			"T1",
			[]events.Type{events.TypeLogin},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := session.NewTokenStore()
			producer := &recordingProducer{}
			exchangeCalls := 0
			s := &Server{
				keyer: session.GlobalKeyer{},
				checkState: func(scope session.Scope, profile, state string) bool {
					return profile == "google" && state == "s3cr3t"
				},
				exchange: func(ctx context.Context, profile, code string) (*oauth2.Token, error) {
					exchangeCalls++
					if tt.exchangeErr != nil {
						return nil, tt.exchangeErr
					}
					return &oauth2.Token{AccessToken: "T1"}, nil
				},
				storeToken: tokens.Set,
				producer:   producer,
			}
			r := mux.NewRouter()
			s.RegisterRoutes(r)

			req := httptest.NewRequest(http.MethodGet, "/callback/google"+tt.query, nil)
			res := httptest.NewRecorder()
			r.ServeHTTP(res, req)

			b, err := io.ReadAll(res.Body)
			assert.NoError(t, err)
			if tt.wantBody != "" {
				body := strings.TrimSuffix(string(b), "\n")
				assert.Equal(t, tt.wantBody, body)
			}
			assert.Equal(t, tt.wantStatus, res.Code)
			assert.Equal(t, tt.wantLocation, res.Header().Get("Location"))
			assert.Equal(t, tt.wantExchangeCalls, exchangeCalls)

			token := tokens.Get(session.Global, "google")
			if tt.wantToken == "" {
				assert.Nil(t, token)
			} else {
				require.NotNil(t, token)
				assert.Equal(t, tt.wantToken, token.AccessToken)
			}
			assert.Equal(t, tt.wantEvents, producer.types())
		})
	}
}

func Test_Server_Complete(t *testing.T) {
	states := session.NewStateTokens(session.RotationStatic)
	tokens := session.NewTokenStore()

	// Stand in for the provider's token endpoint
	var exchangedCodes []string
	provider := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		assert.NoError(t, req.ParseForm())
		code := req.PostForm.Get("code")
		exchangedCodes = append(exchangedCodes, code)
		if code != "good-code" {
			res.Header().Set("Content-Type", "application/json")
			res.WriteHeader(http.StatusBadRequest)
			res.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		res.Header().Set("Content-Type", "application/json")
		res.Write([]byte(`{"access_token":"T1","token_type":"Bearer"}`))
	}))
	defer provider.Close()

	s := NewServer(session.GlobalKeyer{}, states, tokens, map[string]*oauth2.Config{
		"google": {
			ClientID:     "my-client",
			ClientSecret: "my-secret",
			Endpoint: oauth2.Endpoint{
				AuthURL:   provider.URL + "/auth",
				TokenURL:  provider.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}, events.Discard, 5*time.Second)
	state := states.Generate(session.Global, "google")

	// A forged state never reaches the provider
	_, err := s.Complete(context.Background(), session.Global, "google", "good-code", "forged")
	assert.ErrorIs(t, err, ErrStateMismatch)
	assert.Empty(t, exchangedCodes)
	assert.Nil(t, tokens.Get(session.Global, "google"))

	// A code the provider rejects leaves the token store unchanged
	_, err = s.Complete(context.Background(), session.Global, "google", "bad-code", state)
	assert.ErrorIs(t, err, ErrProviderExchange)
	assert.Nil(t, tokens.Get(session.Global, "google"))

	token, err := s.Complete(context.Background(), session.Global, "google", "good-code", state)
	assert.NoError(t, err)
	assert.Equal(t, "T1", token.AccessToken)
	assert.Same(t, token, tokens.Get(session.Global, "google"))
	assert.Equal(t, []string{"bad-code", "good-code"}, exchangedCodes)

	// Unknown profiles fail at the exchange step
	_, err = s.Complete(context.Background(), session.Global, "github", "good-code", states.Generate(session.Global, "github"))
	assert.ErrorIs(t, err, ErrProviderExchange)
}

func Test_Server_Complete_timeout(t *testing.T) {
	tokens := session.NewTokenStore()
	s := &Server{
		checkState: func(scope session.Scope, profile, state string) bool {
			return true
		},
		exchange: func(ctx context.Context, profile, code string) (*oauth2.Token, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		storeToken: tokens.Set,
		producer:   events.Discard,
		timeout:    10 * time.Millisecond,
	}
	_, err := s.Complete(context.Background(), session.Global, "google", "abc", "xyz")
	assert.ErrorIs(t, err, ErrProviderExchange)
	assert.Nil(t, tokens.Get(session.Global, "google"))
}

func Test_keyedMutex(t *testing.T) {
	var k keyedMutex
	inside := 0
	maxInside := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock("global")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
	assert.Empty(t, k.locks)
}

type recordingProducer struct {
	events []events.Event
}

func (p *recordingProducer) Send(ctx context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingProducer) types() []events.Type {
	var result []events.Type
	for _, ev := range p.events {
		result = append(result, ev.Type)
	}
	return result
}
