package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultsDev(t *testing.T) {
	cfg, err := load(func(string) (string, bool) { return "", false }, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeDev {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeDev)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("logLevel=%v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("ListenAddr=%q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.AdminPIN != DefaultDevAdminPIN || !cfg.AdminPINDefaulted {
		t.Fatalf("AdminPIN=%q defaulted=%v, want %q defaulted", cfg.AdminPIN, cfg.AdminPINDefaulted, DefaultDevAdminPIN)
	}
	if cfg.RoomID != DefaultRoomID {
		t.Fatalf("RoomID=%q, want %q", cfg.RoomID, DefaultRoomID)
	}
	if cfg.StrictRelay {
		t.Fatalf("StrictRelay=true, want false")
	}
	if cfg.SignalingWSIdleTimeout != DefaultSignalingWSIdleTimeout {
		t.Fatalf("SignalingWSIdleTimeout=%v, want %v", cfg.SignalingWSIdleTimeout, DefaultSignalingWSIdleTimeout)
	}
	if cfg.SignalingWSPingInterval != DefaultSignalingWSPingInterval {
		t.Fatalf("SignalingWSPingInterval=%v, want %v", cfg.SignalingWSPingInterval, DefaultSignalingWSPingInterval)
	}
	if cfg.MaxSignalingMessageBytes != DefaultMaxSignalingMessageBytes {
		t.Fatalf("MaxSignalingMessageBytes=%d, want %d", cfg.MaxSignalingMessageBytes, DefaultMaxSignalingMessageBytes)
	}
	if cfg.MaxSignalingMessagesPerSecond != DefaultMaxSignalingMessagesPerSecond {
		t.Fatalf("MaxSignalingMessagesPerSecond=%d, want %d", cfg.MaxSignalingMessagesPerSecond, DefaultMaxSignalingMessagesPerSecond)
	}
	if cfg.SignalingSendQueue != DefaultSignalingSendQueue {
		t.Fatalf("SignalingSendQueue=%d, want %d", cfg.SignalingSendQueue, DefaultSignalingSendQueue)
	}
	if cfg.StaticDir != "" {
		t.Fatalf("StaticDir=%q, want empty", cfg.StaticDir)
	}
	if cfg.TURNREST.Enabled() {
		t.Fatalf("TURNREST enabled by default")
	}
	if cfg.ICEConfigError() != nil {
		t.Fatalf("ICEConfigError=%v, want nil", cfg.ICEConfigError())
	}
}

func TestDefaultsProdWhenModeFlagSet(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarAdminPIN: "4821",
	}), []string{"--mode", "prod"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeProd {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeProd)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatJSON)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("logLevel=%v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.AdminPIN != "4821" || cfg.AdminPINDefaulted {
		t.Fatalf("AdminPIN=%q defaulted=%v, want 4821 not defaulted", cfg.AdminPIN, cfg.AdminPINDefaulted)
	}
}

func TestProdRequiresAdminPIN(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarMode: "prod",
	}), nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), envVarAdminPIN) {
		t.Fatalf("err=%v, want mention of %s", err, envVarAdminPIN)
	}
}

func TestAdminPINMustBeFourDigits(t *testing.T) {
	for _, pin := range []string{"123", "12345", "12a4", "abcd"} {
		_, err := load(lookupMap(map[string]string{
			envVarAdminPIN: pin,
		}), nil)
		if err == nil {
			t.Fatalf("pin %q: expected error", pin)
		}
	}

	cfg, err := load(lookupMap(map[string]string{
		envVarAdminPIN: " 0007 ",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AdminPIN != "0007" {
		t.Fatalf("AdminPIN=%q, want %q", cfg.AdminPIN, "0007")
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarListenAddr:  "127.0.0.1:1111",
		envVarAdminPIN:    "1111",
		envVarRoomID:      "env-room",
		envVarStrictRelay: "false",
	}), []string{
		"--listen-addr", "127.0.0.1:2222",
		"--admin-pin", "2222",
		"--room-id", "flag-room",
		"--strict-relay",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:2222" {
		t.Fatalf("ListenAddr=%q, want %q", cfg.ListenAddr, "127.0.0.1:2222")
	}
	if cfg.AdminPIN != "2222" {
		t.Fatalf("AdminPIN=%q, want %q", cfg.AdminPIN, "2222")
	}
	if cfg.RoomID != "flag-room" {
		t.Fatalf("RoomID=%q, want %q", cfg.RoomID, "flag-room")
	}
	if !cfg.StrictRelay {
		t.Fatalf("StrictRelay=false, want true")
	}
}

func TestStrictRelayEnv(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarStrictRelay: "true",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.StrictRelay {
		t.Fatalf("StrictRelay=false, want true")
	}

	if _, err := load(lookupMap(map[string]string{
		envVarStrictRelay: "maybe",
	}), nil); err == nil {
		t.Fatalf("expected error for invalid bool")
	}
}

func TestEmptyRoomIDRejected(t *testing.T) {
	_, err := load(func(string) (string, bool) { return "", false }, []string{"--room-id", "  "})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestSignalingWSOverrides(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarSignalingWSIdleTimeout:        "30s",
		envVarSignalingWSPingInterval:       "5s",
		envVarMaxSignalingMessageBytes:      "2048",
		envVarMaxSignalingMessagesPerSecond: "7",
		envVarSignalingSendQueue:            "16",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SignalingWSIdleTimeout != 30*time.Second {
		t.Fatalf("SignalingWSIdleTimeout=%v, want %v", cfg.SignalingWSIdleTimeout, 30*time.Second)
	}
	if cfg.SignalingWSPingInterval != 5*time.Second {
		t.Fatalf("SignalingWSPingInterval=%v, want %v", cfg.SignalingWSPingInterval, 5*time.Second)
	}
	if cfg.MaxSignalingMessageBytes != 2048 {
		t.Fatalf("MaxSignalingMessageBytes=%d, want %d", cfg.MaxSignalingMessageBytes, 2048)
	}
	if cfg.MaxSignalingMessagesPerSecond != 7 {
		t.Fatalf("MaxSignalingMessagesPerSecond=%d, want %d", cfg.MaxSignalingMessagesPerSecond, 7)
	}
	if cfg.SignalingSendQueue != 16 {
		t.Fatalf("SignalingSendQueue=%d, want %d", cfg.SignalingSendQueue, 16)
	}
}

func TestPingIntervalMustBeBelowIdleTimeout(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarSignalingWSIdleTimeout:  "10s",
		envVarSignalingWSPingInterval: "10s",
	}), nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), envVarSignalingWSPingInterval) {
		t.Fatalf("err=%v, want mention of %s", err, envVarSignalingWSPingInterval)
	}
}

func TestNonPositiveLimitsRejected(t *testing.T) {
	for _, key := range []string{
		envVarMaxSignalingMessageBytes,
		envVarMaxSignalingMessagesPerSecond,
		envVarSignalingSendQueue,
	} {
		_, err := load(lookupMap(map[string]string{key: "0"}), nil)
		if err == nil {
			t.Fatalf("%s=0: expected error", key)
		}
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("%s=0: err=%v, want mention of key", key, err)
		}
	}
}

func TestInvalidDurationRejected(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarShutdownTimeout: "soon",
	}), nil)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestInvalidModeRejected(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarMode: "staging",
	}), nil)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestExplicitLogFormatSurvivesProdMode(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarLogFormat: "text",
		envVarAdminPIN:  "9999",
	}), []string{"--mode", "prod"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
}

func TestAllowedOriginsNormalized(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarAllowedOrigins: "HTTPS://Example.COM:443, http://localhost:5173 ,*",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"https://example.com", "http://localhost:5173", "*"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins=%v, want %v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Fatalf("AllowedOrigins[%d]=%q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}

	if _, err := load(lookupMap(map[string]string{
		envVarAllowedOrigins: "example.com",
	}), nil); err == nil {
		t.Fatalf("expected error for origin without scheme")
	}
}

func TestTURNRESTValidation(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarTURNRESTSharedSecret:   "s3cret",
		envVarTURNRESTUsernamePrefix: "a:b",
	}), nil)
	if err == nil {
		t.Fatalf("expected error for prefix containing ':'")
	}

	_, err = load(lookupMap(map[string]string{
		envVarTURNRESTSharedSecret: "s3cret",
		envVarTURNRESTTTLSeconds:   "0",
	}), nil)
	if err == nil {
		t.Fatalf("expected error for zero TTL")
	}
}

func TestTURNRESTAllowsTURNURLsWithoutStaticCredentials(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarTURNRESTSharedSecret: "s3cret",
		envTurnURLs:                "turn:turn.example.com:3478",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ICEConfigError() != nil {
		t.Fatalf("ICEConfigError=%v, want nil", cfg.ICEConfigError())
	}
	if len(cfg.ICEServers) != 1 {
		t.Fatalf("ICEServers=%v, want 1 entry", cfg.ICEServers)
	}
}

func TestICEConfigErrorIsNotFatal(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envTurnURLs: "turn:turn.example.com:3478",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ICEConfigError() == nil {
		t.Fatalf("expected ICE config error for TURN without credentials")
	}
	if len(cfg.ICEServers) != 0 {
		t.Fatalf("ICEServers=%v, want none", cfg.ICEServers)
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []LogFormat{LogFormatText, LogFormatJSON} {
		logger, err := NewLogger(Config{LogFormat: format, LogLevel: slog.LevelInfo})
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", format, err)
		}
		if logger == nil {
			t.Fatalf("NewLogger(%q) returned nil", format)
		}
	}
	if _, err := NewLogger(Config{LogFormat: "xml"}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
