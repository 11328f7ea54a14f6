package factories

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"triviahost/core"
	"triviahost/handlers/capture"
	"triviahost/handlers/playback"
	"triviahost/services/gemini"
	openaillm "triviahost/services/openai/llm"
	openaitts "triviahost/services/openai/tts"
	"triviahost/utils/audio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDefaultSettingsUseGeminiAndWebSocket(t *testing.T) {
	cfg := DefaultSettingsConfig()
	require.NotNil(t, cfg.Transport.WebSocketConfig)
	assert.Nil(t, cfg.Transport.ConsoleConfig)
	assert.Equal(t, ":8080", cfg.Transport.WebSocketConfig.Addr)
	assert.NotNil(t, cfg.Session.Questions.GeminiConfig)
	assert.NotNil(t, cfg.Session.Speech.GeminiConfig)
	assert.NotNil(t, cfg.Session.Live.GeminiConfig)
	assert.Equal(t, 24000, cfg.Session.Playback.SampleRate)
	assert.Equal(t, 16000, cfg.Session.Capture.SampleRate)
	assert.Equal(t, 4096, cfg.Session.Capture.FrameSize)
	assert.NoError(t, cfg.Session.Validate())
}

func TestSettingsFromJSONReplacesProviders(t *testing.T) {
	cfg, err := SettingsConfigFromJSON([]byte(`{
		"transport": {"console": {"output_sample_rate": 48000}},
		"session": {
			"game": {"default_personality": "oracle"},
			"questions": {"groq": {"model": "llama-3.1-8b-instant"}},
			"speech": {"openai": {"model": "tts-1"}},
			"capture": {"frame_size": 2048}
		}
	}`))
	require.NoError(t, err)

	assert.Nil(t, cfg.Transport.WebSocketConfig)
	require.NotNil(t, cfg.Transport.ConsoleConfig)
	assert.Equal(t, 48000, cfg.Transport.ConsoleConfig.OutputSampleRate)

	s := cfg.Session
	assert.Nil(t, s.Questions.GeminiConfig)
	require.NotNil(t, s.Questions.GroqConfig)
	assert.Equal(t, "llama-3.1-8b-instant", s.Questions.GroqConfig.Model)
	assert.Nil(t, s.Speech.GeminiConfig)
	require.NotNil(t, s.Speech.OpenAIConfig)
	assert.NotNil(t, s.Live.GeminiConfig, "live keeps its default provider")
	assert.Equal(t, 2048, s.Capture.FrameSize)
	assert.Equal(t, 16000, s.Capture.SampleRate)
	assert.Equal(t, 250*time.Millisecond, s.GameConfig().PlaybackPollInterval)
	assert.Equal(t, "oracle", s.GameConfig().DefaultPersonalityID)
}

func TestSettingsFromJSONRejectsGarbage(t *testing.T) {
	_, err := SettingsConfigFromJSON([]byte(`{"session": 3}`))
	assert.Error(t, err)
	_, err = SettingsConfigFromJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	cfg, source, err := LoadSettings(env(map[string]string{
		"SETTINGS_PATH": filepath.Join(t.TempDir(), "missing.json"),
	}))
	require.NoError(t, err)
	assert.Equal(t, SettingsFromDefaults, source)
	assert.NotNil(t, cfg.Transport.WebSocketConfig)

	b64 := base64.StdEncoding.EncodeToString([]byte(`{"transport":{"websocket":{"addr":":9999"}}}`))
	cfg, source, err = LoadSettings(env(map[string]string{"SETTINGS_JSON_B64": b64}))
	require.NoError(t, err)
	assert.Equal(t, SettingsFromEnv, source)
	assert.Equal(t, ":9999", cfg.Transport.WebSocketConfig.Addr)
	assert.Equal(t, "/ws", cfg.Transport.WebSocketConfig.Path)

	_, _, err = LoadSettings(env(map[string]string{"SETTINGS_JSON_B64": "%%%"}))
	assert.Error(t, err)
}

func TestInjectAPIKeysKeepsExplicitKeys(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.Speech = SpeechFactoryConfig{OpenAIConfig: &openaitts.Config{APIKey: "from-file"}}
	cfg.InjectAPIKeys(APIKeysFromEnv(env(map[string]string{
		"API_KEY":        "fallback",
		"OPENAI_API_KEY": "openai",
	})))

	assert.Equal(t, "fallback", cfg.Questions.GeminiConfig.APIKey)
	assert.Equal(t, "fallback", cfg.Live.GeminiConfig.APIKey)
	assert.Equal(t, "from-file", cfg.Speech.OpenAIConfig.APIKey)

	keys := APIKeysFromEnv(env(map[string]string{"API_KEY": "fallback", "GEMINI_API_KEY": "gemini"}))
	assert.Equal(t, "gemini", keys.Gemini)
}

func TestSessionValidate(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.Game.DefaultPersonality = "nobody"
	assert.Error(t, cfg.Validate())

	cfg = DefaultSessionConfig()
	dup := core.DefaultPersonalities()
	cfg.Game.Personalities = append(dup, dup[0])
	assert.Error(t, cfg.Validate())

	cfg = DefaultSessionConfig()
	cfg.Game.Personalities = []core.Personality{{ID: "x", SystemPrompt: "p", Voice: "Robot"}}
	assert.Error(t, cfg.Validate())
}

func TestBuildQuestionServiceNeedsExactlyOneProvider(t *testing.T) {
	ctx := context.Background()
	logger := core.NewNopLogger()

	_, err := BuildQuestionService(ctx, QuestionFactoryConfig{}, logger)
	assert.Error(t, err)

	_, err = BuildQuestionService(ctx, QuestionFactoryConfig{
		GeminiConfig: &gemini.Config{APIKey: "k"},
		OpenAIConfig: &openaillm.Config{APIKey: "k"},
	}, logger)
	assert.Error(t, err)

	svc, err := BuildQuestionService(ctx, QuestionFactoryConfig{GroqConfig: &openaillm.Config{APIKey: "k"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &openaillm.QuestionService{}, svc)

	_, err = BuildQuestionService(ctx, QuestionFactoryConfig{OpenAIConfig: &openaillm.Config{}}, logger)
	assert.Error(t, err, "missing key")
}

func TestBuildSpeechAndLive(t *testing.T) {
	ctx := context.Background()
	logger := core.NewNopLogger()

	_, err := BuildSpeechService(ctx, SpeechFactoryConfig{}, logger)
	assert.Error(t, err)
	_, err = BuildSpeechService(ctx, SpeechFactoryConfig{
		GeminiConfig: &gemini.Config{APIKey: "k"},
		OpenAIConfig: &openaitts.Config{APIKey: "k"},
	}, logger)
	assert.Error(t, err)

	speech, err := BuildSpeechService(ctx, SpeechFactoryConfig{OpenAIConfig: &openaitts.Config{APIKey: "k"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &openaitts.SpeechService{}, speech)

	_, err = BuildLiveConnector(ctx, LiveFactoryConfig{}, logger)
	assert.Error(t, err)
	_, err = BuildLiveConnector(ctx, LiveFactoryConfig{GeminiConfig: &gemini.Config{}}, logger)
	assert.Error(t, err, "missing key")
}

func TestTransportGetProvider(t *testing.T) {
	_, err := TransportFactoryConfig{}.GetProvider(nil, core.NewNopLogger())
	assert.Error(t, err)

	provider, err := DefaultTransportFactoryConfig().GetProvider(nil, core.NewNopLogger())
	require.NoError(t, err)
	assert.NotNil(t, provider)

	console := DefaultTransportFactoryConfig().ConsoleTransportConfig()
	assert.Nil(t, console.WebSocketConfig)
	assert.NotNil(t, console.ConsoleConfig)
}

// --- pipeline ---

type fakeQuestions struct{}

func (fakeQuestions) GenerateQuestion(context.Context, string) (*core.Question, error) {
	return &core.Question{Question: "q", Answer: "a"}, nil
}

type fakeSpeech struct{}

func (fakeSpeech) SynthesizeSpeech(context.Context, string, core.VoiceName) (string, error) {
	return "", nil
}

type fakeLive struct{}

func (fakeLive) OpenLiveSession(context.Context, string, core.LiveCallbacks) (core.LiveSession, error) {
	return nil, core.ErrConnection
}

type fakeSink struct{}

func (fakeSink) Resume(context.Context) error          { return nil }
func (fakeSink) State() playback.SinkState             { return playback.SinkRunning }
func (fakeSink) CurrentTime() float64                  { return 0 }
func (fakeSink) Schedule(*audio.Buffer, float64) error { return nil }

type fakeMic struct{}

func (fakeMic) Open(context.Context, capture.StreamConfig) (capture.InputStream, error) {
	return nil, core.ErrPermissionDenied
}

type fakeService struct {
	commands  chan core.IEvent
	mu        sync.Mutex
	snapshots []core.GameSnapshot
	closed    int
}

func (s *fakeService) Commands() <-chan core.IEvent    { return s.commands }
func (s *fakeService) Sink() playback.Sink            { return fakeSink{} }
func (s *fakeService) Microphone() capture.Microphone { return fakeMic{} }
func (s *fakeService) SessionID() string              { return "player-1" }

func (s *fakeService) SendSnapshot(snap core.GameSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *fakeService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeService) snapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

func testServices() *SessionServices {
	return &SessionServices{Questions: fakeQuestions{}, Speech: fakeSpeech{}, Live: fakeLive{}}
}

func TestGameHandlerBuilderOrder(t *testing.T) {
	builder := GameHandlerBuilder(DefaultSessionConfig(), testServices(), core.NewNopLogger())
	handlers, err := builder(&fakeService{commands: make(chan core.IEvent)}, context.Background())
	require.NoError(t, err)
	require.Len(t, handlers, 3)
}

func TestGameHandlerBuilderRejectsMissingServices(t *testing.T) {
	builder := GameHandlerBuilder(DefaultSessionConfig(), &SessionServices{}, core.NewNopLogger())
	_, err := builder(&fakeService{commands: make(chan core.IEvent)}, context.Background())
	assert.Error(t, err)
}

func TestPipelineRunEndsOnDisconnect(t *testing.T) {
	svc := &fakeService{commands: make(chan core.IEvent, 1)}
	p := NewPipeline(GameHandlerBuilder(DefaultSessionConfig(), testServices(), core.NewNopLogger()),
		PipelineConfig{Timeout: 5 * time.Second}, core.NewNopLogger())

	result := make(chan error, 1)
	go func() { result <- p.Run(svc, context.Background()) }()

	require.Eventually(t, func() bool { return svc.snapshotCount() > 0 }, 2*time.Second, 5*time.Millisecond)
	close(svc.commands)

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline did not finish")
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, 1, svc.closed)
}

func TestPipelineRunTimeout(t *testing.T) {
	svc := &fakeService{commands: make(chan core.IEvent)}
	p := NewPipeline(GameHandlerBuilder(DefaultSessionConfig(), testServices(), core.NewNopLogger()),
		PipelineConfig{Timeout: 50 * time.Millisecond}, core.NewNopLogger())

	err := p.Run(svc, context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
