package config

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaults_Valid(t *testing.T) {
	for _, n := range []NetworkType{Mainnet, Testnet} {
		cfg := Default(n)
		if cfg.Network != n {
			t.Errorf("network = %s, want %s", cfg.Network, n)
		}
		if err := Validate(cfg); err != nil {
			t.Errorf("Default(%s) invalid: %v", n, err)
		}
	}
	if DefaultTestnet().HRP() != "tn20" || DefaultMainnet().HRP() != "n20" {
		t.Error("HRP should follow the network")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "n20.conf")
	writeFile(t, path, `
# comment
network = testnet
indexer.url = "http://indexer:3000/api"
wallet.name = 'hot'
mint.amount=12.5
`)
	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := map[string]string{
		"network":     "testnet",
		"indexer.url": "http://indexer:3000/api",
		"wallet.name": "hot",
		"mint.amount": "12.5",
	}
	for k, v := range want {
		if values[k] != v {
			t.Errorf("%s = %q, want %q", k, values[k], v)
		}
	}

	missing, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil || len(missing) != 0 {
		t.Errorf("missing file: %v %v", missing, err)
	}

	writeFile(t, path, "just a line\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("line without = should fail")
	}
}

func TestApplyFileConfig_Types(t *testing.T) {
	cfg := DefaultMainnet()
	err := ApplyFileConfig(cfg, map[string]string{
		"indexer.timeout": "5s",
		"indexer.rps":     "2.5",
		"indexer.burst":   "4",
		"wallet.account":  "3",
		"mint.maxcounter": "1000",
		"mint.count":      "0",
		"mint.poll":       "1m",
		"log.json":        "yes",
		"unknown.key":     "ignored",
	})
	if err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if cfg.Indexer.Timeout != 5*time.Second || cfg.Indexer.RPS != 2.5 || cfg.Indexer.Burst != 4 {
		t.Errorf("indexer = %+v", cfg.Indexer)
	}
	if cfg.Wallet.Account != 3 || cfg.Mint.MaxCounter != 1000 || cfg.Mint.Count != 0 || cfg.Mint.Poll != time.Minute {
		t.Errorf("wallet/mint = %+v %+v", cfg.Wallet, cfg.Mint)
	}
	if !cfg.Log.JSON {
		t.Error("log.json should be true")
	}

	if err := ApplyFileConfig(cfg, map[string]string{"mint.poll": "soon"}); err == nil {
		t.Error("bad duration should fail")
	}
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "n20.conf")
	if err := WriteDefaultConfig(path, Testnet); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}
	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	want := DefaultTestnet()
	if cfg.Network != Testnet || cfg.Indexer != want.Indexer || cfg.Mint != want.Mint {
		t.Errorf("round trip = %+v, want %+v", cfg, want)
	}
}

func TestPrecedence_FileEnvFlags(t *testing.T) {
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, map[string]string{
		"mint.tick":   "FILE",
		"mint.amount": "1",
		"wallet.name": "file",
	}); err != nil {
		t.Fatal(err)
	}
	if err := ApplyEnv(cfg, &EnvOverrides{Tick: "ENV", Amount: "2", Password: "secret"}); err != nil {
		t.Fatal(err)
	}
	flags, err := ParseFlags("test", []string{"--tick", "FLAG", "--count=0"})
	if err != nil {
		t.Fatal(err)
	}
	ApplyFlags(cfg, flags)

	if cfg.Mint.Tick != "FLAG" {
		t.Errorf("tick = %s, want flag value", cfg.Mint.Tick)
	}
	if cfg.Mint.Amount != "2" {
		t.Errorf("amount = %s, want env value", cfg.Mint.Amount)
	}
	if cfg.Wallet.Name != "file" {
		t.Errorf("wallet = %s, want file value", cfg.Wallet.Name)
	}
	if cfg.Mint.Count != 0 {
		t.Errorf("count = %d, explicit --count=0 should apply", cfg.Mint.Count)
	}
	if cfg.Wallet.Password != "secret" {
		t.Error("password should come from the environment")
	}
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags("n20-cli", []string{"--testnet", "--account", "2", "mint", "--now"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if f.Network != "testnet" || !f.SetAccount || f.Account != 2 {
		t.Errorf("flags = %+v", f)
	}
	if strings.Join(f.Args, " ") != "mint --now" {
		t.Errorf("args = %v", f.Args)
	}

	if _, err := ParseFlags("n20-cli", []string{"-h"}); !errors.Is(err, ErrHelp) {
		t.Errorf("help: got %v, want ErrHelp", err)
	}
	if _, err := ParseFlags("n20-cli", []string{"--bogus"}); err == nil {
		t.Error("unknown flag should fail")
	}
}

func TestLoadEnv_DotenvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	writeFile(t, dotenv, "N20_MINT_TICK=DOTENV\nN20_MINT_DESCRIPTOR=/tmp/from-dotenv.json\n")
	t.Setenv("N20_MINT_TICK", "PROCESS")
	t.Cleanup(func() { os.Unsetenv("N20_MINT_DESCRIPTOR") })

	env, err := LoadEnv(context.Background(), dotenv, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if env.Tick != "PROCESS" {
		t.Errorf("tick = %q, process environment should win", env.Tick)
	}
	if env.Descriptor != "/tmp/from-dotenv.json" {
		t.Errorf("descriptor = %q, want value from .env", env.Descriptor)
	}
}

func TestLoad(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("N20_MINT_AMOUNT", "7")
	writeFile(t, filepath.Join(dataDir, "n20.conf"), "mint.amount = 3\nmint.count = 2\n")

	cfg, flags, err := Load(context.Background(), "n20-minerd", []string{"--datadir", dataDir, "--testnet", "--count", "5", "status"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Network != Testnet || cfg.DataDir != dataDir {
		t.Errorf("network/datadir = %s %s", cfg.Network, cfg.DataDir)
	}
	if cfg.Mint.Amount != "7" || cfg.Mint.Count != 5 {
		t.Errorf("amount = %s count = %d, want env 7 and flag 5", cfg.Mint.Amount, cfg.Mint.Count)
	}
	if len(flags.Args) != 1 || flags.Args[0] != "status" {
		t.Errorf("args = %v", flags.Args)
	}
	if _, err := os.Stat(cfg.NetworkDir()); err != nil {
		t.Errorf("network dir not created: %v", err)
	}
	if cfg.KeystoreDir() != filepath.Join(dataDir, "testnet", "keystore") {
		t.Errorf("keystore dir = %s", cfg.KeystoreDir())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad network", func(c *Config) { c.Network = "regtest" }},
		{"bad indexer url", func(c *Config) { c.Indexer.URL = "ftp://x" }},
		{"bad mirror", func(c *Config) { c.Indexer.Mirror = "nope" }},
		{"zero timeout", func(c *Config) { c.Indexer.Timeout = 0 }},
		{"zero rps", func(c *Config) { c.Indexer.RPS = 0 }},
		{"zero burst", func(c *Config) { c.Indexer.Burst = 0 }},
		{"bad recipient", func(c *Config) { c.Wallet.Recipient = "xyz" }},
		{"empty tick", func(c *Config) { c.Mint.Tick = "" }},
		{"bad amount", func(c *Config) { c.Mint.Amount = "abc" }},
		{"zero amount", func(c *Config) { c.Mint.Amount = "0" }},
		{"zero max counter", func(c *Config) { c.Mint.MaxCounter = 0 }},
		{"negative count", func(c *Config) { c.Mint.Count = -1 }},
		{"zero poll", func(c *Config) { c.Mint.Poll = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMainnet()
			tt.modify(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	cfg := DefaultMainnet()
	cfg.Wallet.Recipient = strings.Repeat("ab", 20)
	if err := Validate(cfg); err != nil {
		t.Errorf("hex recipient should be valid: %v", err)
	}
}

func TestDefaultDescriptor(t *testing.T) {
	d := DefaultDescriptor()
	wantMax, _ := new(big.Int).SetString("2100000000000000", 10)
	wantLim, _ := new(big.Int).SetString("500000000000", 10)
	if d.Ticker() != "NOTE" || d.Decimals() != 8 || d.Start() != 830400 || d.Bitwork().String() != "20" {
		t.Errorf("descriptor = %s dec %d start %d bitwork %s", d.Ticker(), d.Decimals(), d.Start(), d.Bitwork())
	}
	if d.Max().Cmp(wantMax) != 0 || d.Lim().Cmp(wantLim) != 0 {
		t.Errorf("max/lim = %s/%s", d.Max(), d.Lim())
	}
	if d.Schema() != "50b13619d4d936d7c5c7fb7dfbe752e33b85b33774e9e2b3779f16791fb1c749" {
		t.Errorf("schema = %s", d.Schema())
	}
}

func TestLoadDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.json")
	writeFile(t, path, `{"tick":"PEPE","max":100000000000000000000,"lim":1000,"dec":2,"start":10,"bitwork":"000","sch":"abcd"}`)
	d, err := LoadDescriptor(path)
	if err != nil {
		t.Fatalf("LoadDescriptor: %v", err)
	}
	wantMax, _ := new(big.Int).SetString("100000000000000000000", 10)
	if d.Ticker() != "PEPE" || d.Max().Cmp(wantMax) != 0 || d.Lim().Int64() != 1000 || d.Bitwork().String() != "000" {
		t.Errorf("descriptor = %s %s %s %s", d.Ticker(), d.Max(), d.Lim(), d.Bitwork())
	}

	for _, doc := range []string{
		`{"tick":"X","lim":1,"dec":0,"sch":"a"}`,
		`{"tick":"X","max":1.5,"lim":1,"dec":0,"sch":"a"}`,
		`{"tick":"X","max":10,"lim":20,"dec":0,"sch":"a"}`,
		`not json`,
	} {
		if _, err := ParseDescriptor([]byte(doc)); err == nil {
			t.Errorf("ParseDescriptor(%s) should fail", doc)
		}
	}
}

func TestMintRequest(t *testing.T) {
	cfg := DefaultMainnet()
	d := DefaultDescriptor()
	req, err := cfg.MintRequest(d)
	if err != nil {
		t.Fatalf("MintRequest: %v", err)
	}
	if req.Amount().Int64() != 15600000000 {
		t.Errorf("amount = %s, want 15600000000", req.Amount())
	}

	cfg.Mint.Tick = "OTHER"
	if _, err := cfg.MintRequest(d); err == nil {
		t.Error("tick mismatch should fail")
	}
}
