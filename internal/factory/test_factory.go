package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamehub/internal/dependencies/mocks"
	"github.com/mcoot/gamehub/internal/services/auth"
	"github.com/mcoot/gamehub/internal/services/ports"
	"github.com/mcoot/gamehub/internal/storage/memory"
	"github.com/mcoot/gamehub/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock      *mocks.MockClock
	MockRandom     *mocks.MockRandom
	MockSupervisor *mocks.MockSupervisor
}

// TestPortRange is the port pool used by NewTestApp
var TestPortRange = ports.Config{Start: 40000, Size: 8}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	mockSupervisor := mocks.NewMockSupervisor()

	cfg := Config{
		AuthConfig:  auth.Config{SessionDuration: 24 * time.Hour, BcryptCost: bcrypt.MinCost},
		PortsConfig: TestPortRange,
	}
	app, err := newWithDependencies(store, mockClock, mockRandom, mockSupervisor, cfg, testutil.NopLogger())
	if err != nil {
		panic(err)
	}

	return &TestApp{
		App:            app,
		MockClock:      mockClock,
		MockRandom:     mockRandom,
		MockSupervisor: mockSupervisor,
	}
}
