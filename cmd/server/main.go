package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/codingconcepts/env"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/oauth2"

	"github.com/golden-vcr/gatekeeper"
	"github.com/golden-vcr/gatekeeper/internal/callback"
	"github.com/golden-vcr/gatekeeper/internal/events"
	"github.com/golden-vcr/gatekeeper/internal/gate"
	"github.com/golden-vcr/gatekeeper/internal/session"
	"github.com/golden-vcr/gatekeeper/internal/userauth"
	"github.com/golden-vcr/gatekeeper/internal/users"
	"github.com/golden-vcr/server-common/entry"
	"github.com/golden-vcr/server-common/rmq"
)

type Config struct {
	BindAddr   string `env:"BIND_ADDR"`
	ListenPort int    `env:"LISTEN_PORT" default:"3000"`
	Origin     string `env:"ORIGIN" default:"http://localhost:3000"`

	GoogleClientId     string `env:"GOOGLE_CLIENT_ID" required:"true"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET" required:"true"`

	SessionScope               string `env:"SESSION_SCOPE" default:"global"`
	SessionCookieSigningKey    string `env:"SESSION_COOKIE_SIGNING_KEY"`
	SessionCookieEncryptionKey string `env:"SESSION_COOKIE_ENCRYPTION_KEY"`
	StateRotation              string `env:"STATE_ROTATION" default:"static"`

	ProviderTimeoutSeconds int `env:"PROVIDER_TIMEOUT_SECONDS" default:"10"`

	DatabasePath string `env:"DATABASE_PATH" default:":memory:"`

	RmqHost     string `env:"RMQ_HOST"`
	RmqPort     int    `env:"RMQ_PORT" default:"5672"`
	RmqVhost    string `env:"RMQ_VHOST"`
	RmqUser     string `env:"RMQ_USER"`
	RmqPassword string `env:"RMQ_PASSWORD"`
}

func main() {
	app := entry.NewApplication("gatekeeper")
	defer app.Stop()
	ctx := app.Context()

	// Parse config from environment variables
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		app.Fail("Failed to load .env file", err)
	}
	config := Config{}
	if err := env.Set(&config); err != nil {
		app.Fail("Failed to load config", err)
	}
	providerTimeout := time.Duration(config.ProviderTimeoutSeconds) * time.Second

	// Resolve the OAuth client configuration for the profile that gates our routes
	profile, ok := gatekeeper.Profiles.Get(gatekeeper.DefaultProfileName)
	if !ok {
		app.Fail("Failed to resolve profile", fmt.Errorf("no profile named '%s'", gatekeeper.DefaultProfileName))
	}
	configs := map[string]*oauth2.Config{
		profile.Name: profile.OAuthConfig(config.GoogleClientId, config.GoogleClientSecret, config.Origin),
	}

	// Auth state is either shared by all requests, or scoped to each browser by a
	// session cookie
	var keyer session.Keyer
	switch config.SessionScope {
	case "global":
		keyer = session.GlobalKeyer{}
	case "cookie":
		signingKey, err := base64.StdEncoding.DecodeString(config.SessionCookieSigningKey)
		if err != nil {
			app.Fail("Failed to decode SESSION_COOKIE_SIGNING_KEY", err)
		}
		encryptionKey, err := base64.StdEncoding.DecodeString(config.SessionCookieEncryptionKey)
		if err != nil {
			app.Fail("Failed to decode SESSION_COOKIE_ENCRYPTION_KEY", err)
		}
		cookieKeyer, err := session.NewCookieKeyer("gatekeeper", signingKey, encryptionKey)
		if err != nil {
			app.Fail("Failed to initialize session cookies", err)
		}
		keyer = cookieKeyer
	default:
		app.Fail("Failed to load config", fmt.Errorf("unsupported SESSION_SCOPE '%s'", config.SessionScope))
	}
	rotation, err := session.ParseRotation(config.StateRotation)
	if err != nil {
		app.Fail("Failed to load config", err)
	}
	states := session.NewStateTokens(rotation)
	tokens := session.NewTokenStore()
	g := gate.New(states, tokens, configs)
	app.Log().Info("Initialized session state",
		"sessionScope", config.SessionScope,
		"stateRotation", rotation,
	)

	// Publish auth events to RabbitMQ if configured; otherwise just log them
	producer := events.NewLogProducer(app.Log())
	if config.RmqHost != "" {
		amqpConn, err := amqp.Dial(rmq.FormatConnectionString(config.RmqHost, config.RmqPort, config.RmqVhost, config.RmqUser, config.RmqPassword))
		if err != nil {
			app.Fail("Failed to connect to AMQP server", err)
		}
		defer amqpConn.Close()
		rmqProducer, err := rmq.NewProducer(amqpConn, "gatekeeper-events")
		if err != nil {
			app.Fail("Failed to initialize AMQP producer", err)
		}
		producer = events.NewProducer(rmqProducer)
	}

	// Open the database that holds our user list
	store, err := users.OpenSQLiteStore(ctx, config.DatabasePath)
	if err != nil {
		app.Fail("Failed to open user database", err)
	}
	defer store.Close()

	// Start setting up our HTTP handlers, using gorilla/mux for routing
	r := mux.NewRouter()

	// GET / shows a login link (or the logged-in user's details), and GET
	// /logout/{profile} discards the user's access token
	userauthServer := userauth.NewServer(keyer, g, *profile, producer, providerTimeout)
	userauthServer.RegisterRoutes(r)

	// The identity provider sends the user back to GET /callback/{profile}, where we
	// verify the state value and exchange the authorization code for an access token
	callbackServer := callback.NewServer(keyer, states, tokens, configs, producer, providerTimeout)
	callbackServer.RegisterRoutes(r)

	// The user list can only be viewed and modified once logged in
	usersServer := users.NewServer(keyer, profile.Name, store, producer)
	usersServer.RegisterRoutes(g, r)

	// Handle incoming HTTP connections until our top-level context is canceled, at
	// which point shut down cleanly
	entry.RunServer(app, r, config.BindAddr, config.ListenPort)
}
