// Package app assembles the core session dependencies from configuration.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/zhouzirui/philo-chat/backend/internal/config"
	"github.com/zhouzirui/philo-chat/backend/internal/model/philosopher"
	"github.com/zhouzirui/philo-chat/backend/internal/service/ai"
	"github.com/zhouzirui/philo-chat/backend/internal/service/chat"
)

// LoadRoster returns the philosopher roster from path, or the built-in seed
// when path is empty.
func LoadRoster(path string) (philosopher.Store, error) {
	if path == "" {
		return philosopher.NewMemoryStore(philosopher.Seed()), nil
	}
	items, err := philosopher.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load philosophers: %w", err)
	}
	log.Printf("[app] loaded %d philosophers from %s", len(items), path)
	return philosopher.NewMemoryStore(items), nil
}

// NewOptions builds session options from cfg. A missing or broken model
// configuration leaves the completer nil; completion turns then fail with
// an llm_error instead of aborting startup.
func NewOptions(ctx context.Context, cfg *config.Config) (chat.Options, error) {
	roster, err := LoadRoster(cfg.Chat.PhilosophersFile)
	if err != nil {
		return chat.Options{}, err
	}

	opts := chat.Options{
		Directory:    chat.NewDirectory(),
		Philosophers: roster,
		Prompts:      ai.NewPromptManager(),
		Timeout:      cfg.AI.Timeout,
	}

	if !cfg.AI.Enabled() {
		log.Println("Ark 凭证未配置，跳过 AI 功能初始化")
		return opts, nil
	}

	aiService, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		log.Printf("warning: failed to initialize AI service: %v", err)
		log.Println("continuing without AI functionality - 请检查 Ark 模型相关环境变量")
		return opts, nil
	}
	log.Println("AI service initialized successfully")
	opts.Completer = aiService
	return opts, nil
}
