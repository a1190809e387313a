package factory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mcoot/linkguard/internal/config"
	"github.com/mcoot/linkguard/internal/dependencies/mocks"
	"github.com/mcoot/linkguard/internal/model"
	"github.com/mcoot/linkguard/internal/services/discord"
	"github.com/mcoot/linkguard/internal/services/identity"
	"github.com/mcoot/linkguard/internal/storage/memory"
	"github.com/mcoot/linkguard/internal/testutil"
)

// Tokens the test app accepts
const (
	TestBridgeToken = "bridge-token"
	TestAdminToken  = "admin-token"
	TestPublicURL   = "http://linkguard.test"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock    *mocks.MockClock
	MockRandom   *mocks.MockRandom
	FakeProvider *FakeProvider
	FakeChat     *FakeChat
}

// TestSettings returns settings suitable for tests
func TestSettings() config.Settings {
	s := config.Default()
	s.Server.PublicURL = TestPublicURL
	s.Security.BridgeToken = TestBridgeToken
	s.Security.AdminToken = TestAdminToken
	s.Security.TokenSecret = "test-secret-with-plenty-of-entropy-0123456789"
	s.RateLimit.PerSecond = 0
	return s
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithSettings(TestSettings())
}

// NewTestAppWithSettings creates a test App over the given settings
func NewTestAppWithSettings(settings config.Settings) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	provider := NewFakeProvider()
	chat := NewFakeChat()

	app, err := newWithDependencies(settings, dependencies{
		storage:  memory.New(mockClock),
		clock:    mockClock,
		random:   mockRandom,
		provider: provider,
		chat:     chat,
		logger:   testutil.NopLogger(),
	})
	if err != nil {
		panic(err)
	}

	return &TestApp{
		App:          app,
		MockClock:    mockClock,
		MockRandom:   mockRandom,
		FakeProvider: provider,
		FakeChat:     chat,
	}
}

// FakeProvider resolves authorization codes to registered chat users
type FakeProvider struct {
	mu    sync.Mutex
	users map[string]model.ChatUser
	// Scope is granted with every token
	Scope string
}

// Ensure FakeProvider implements Provider
var _ identity.Provider = (*FakeProvider)(nil)

// NewFakeProvider creates a provider with no registered users
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		users: make(map[string]model.ChatUser),
		Scope: "identify email applications.commands",
	}
}

// Register makes code exchange to user
func (p *FakeProvider) Register(code string, user model.ChatUser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[code] = user
}

// AuthorizationURL implements Provider
func (p *FakeProvider) AuthorizationURL(state string) string {
	return "https://discord.test/oauth2/authorize?state=" + state
}

// Exchange implements Provider
func (p *FakeProvider) Exchange(ctx context.Context, code string) (*model.TokenSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[code]; !ok {
		return nil, model.ErrExchangeFailed
	}
	return &model.TokenSet{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		Scope:        p.Scope,
		ExpiresAt:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

// FetchUser implements Provider
func (p *FakeProvider) FetchUser(ctx context.Context, tokens *model.TokenSet) (*model.ChatUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.users[strings.TrimPrefix(tokens.AccessToken, "access-")]
	if !ok {
		return nil, model.ErrExchangeFailed
	}
	return &user, nil
}

// FakeChat records direct messages instead of sending them
type FakeChat struct {
	mu       sync.Mutex
	messages []SentMessage
}

// SentMessage is one recorded direct message
type SentMessage struct {
	Recipient string
	Message   *discordgo.MessageSend
}

// Ensure FakeChat implements Session
var _ discord.Session = (*FakeChat)(nil)

// NewFakeChat creates an empty recorder
func NewFakeChat() *FakeChat {
	return &FakeChat{}
}

// UserChannelCreate implements Session; the DM channel id is the recipient id
func (c *FakeChat) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: recipientID, Type: discordgo.ChannelTypeDM}, nil
}

// ChannelMessageSendComplex implements Session
func (c *FakeChat) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, SentMessage{Recipient: channelID, Message: data})
	return &discordgo.Message{ChannelID: channelID, Content: data.Content}, nil
}

// InteractionRespond implements Session
func (c *FakeChat) InteractionRespond(*discordgo.Interaction, *discordgo.InteractionResponse, ...discordgo.RequestOption) error {
	return nil
}

// Sent returns the messages recorded so far
func (c *FakeChat) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentMessage, len(c.messages))
	copy(out, c.messages)
	return out
}
