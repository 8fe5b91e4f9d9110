package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mathcast/api/internal/app"
	"mathcast/api/internal/config"
	"mathcast/api/internal/httpserver"
	"mathcast/api/internal/telegram"
)

func main() {
	cfg := config.LoadBot()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	go a.Run(ctx)

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = false

	r := &telegram.Router{
		Bot:          bot,
		Service:      a.Service,
		OCR:          a.OCR,
		Ping:         a.Ping,
		PollInterval: cfg.PollInterval,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		pctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := a.Ping(pctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	addr := "0.0.0.0:" + cfg.Port
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		startWebhookMode(ctx, addr, mux, bot, r, webhookURL)
	} else {
		startPollingMode(ctx, addr, mux, bot, r)
	}

	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Close(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// ---------------- Modes -----------------

func startWebhookMode(ctx context.Context, addr string, mux *http.ServeMux, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) {
	// secret webhook path
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal(err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal(err)
	}

	mux.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			log.Printf("webhook: %v", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		go r.HandleUpdate(ctx, *upd)
	})

	log.Printf("webhook listening on %s%s", addr, path)
	if err := httpserver.Serve(ctx, addr, mux, httpserver.DefaultTimeouts); err != nil {
		log.Printf("http: %v", err)
	}
}

func startPollingMode(ctx context.Context, addr string, mux *http.ServeMux, bot *tgbotapi.BotAPI, r *telegram.Router) {
	// health endpoint only; polling does not need it
	go func() {
		if err := httpserver.Serve(ctx, addr, mux, httpserver.DefaultTimeouts); err != nil {
			log.Printf("health server: %v", err)
		}
	}()

	runPolling(ctx, bot, func(upd tgbotapi.Update) {
		r.HandleUpdate(ctx, upd)
	})
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 from Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		if ctx.Err() != nil {
			log.Printf("polling: context cancelled")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			log.Printf("polling error: %v; retry in %v", err, d)
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ---------------- Helpers -----------------

// shortHash is FNV-1a of s as 16 hex digits; stable per token, not secret-grade.
func shortHash(s string) string {
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}
