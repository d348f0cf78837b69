package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/boardgame-groups/internal/bgg"
	"github.com/mcoot/boardgame-groups/internal/dependencies/mocks"
	"github.com/mcoot/boardgame-groups/internal/services/auth"
	"github.com/mcoot/boardgame-groups/internal/services/catalog"
	"github.com/mcoot/boardgame-groups/internal/services/users"
	"github.com/mcoot/boardgame-groups/internal/storage/memory"
	"github.com/mcoot/boardgame-groups/internal/testutil"
)

// TestSecret signs tokens issued by a TestApp
const TestSecret = "test-secret"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockIDGen  *mocks.MockIDGen
	MockMailer *mocks.MockMailer
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// BoardGameGeek calls go to an address that refuses connections.
func NewTestApp() *TestApp {
	cfg := bgg.DefaultConfig()
	cfg.BaseURL = "http://127.0.0.1:1"
	cfg.MaxRetries = 0
	cfg.RateLimit = 0
	return NewTestAppWithExternal(bgg.New(cfg, testutil.NopLogger()))
}

// NewTestAppWithExternal creates a TestApp whose catalog uses external for
// BoardGameGeek lookups
func NewTestAppWithExternal(external catalog.External) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockIDGen := mocks.NewMockIDGen()
	mockMailer := mocks.NewMockMailer()

	authCfg := auth.DefaultConfig()
	authCfg.Secret = []byte(TestSecret)
	authCfg.BcryptCost = bcrypt.MinCost

	app := newWithDependencies(dependencies{
		store:    memory.New(),
		clock:    mockClock,
		ids:      mockIDGen,
		mailer:   mockMailer,
		external: external,
		authCfg:  authCfg,
		usersCfg: users.DefaultConfig(),
		logger:   testutil.NopLogger(),
	})

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockIDGen:  mockIDGen,
		MockMailer: mockMailer,
	}
}
