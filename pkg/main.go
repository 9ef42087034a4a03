package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkg "github.com/plaza-social/plaza/pkg/internal"
	"github.com/plaza-social/plaza/pkg/internal/cache"
	"github.com/plaza-social/plaza/pkg/internal/database"
	"github.com/plaza-social/plaza/pkg/internal/http"
	"github.com/plaza-social/plaza/pkg/internal/http/api"
	"github.com/plaza-social/plaza/pkg/internal/services"
	"github.com/plaza-social/plaza/pkg/internal/stores"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Booting screen
	fmt.Println(color.YellowString(" ____  _\n|  _ \\| | __ _ ______ _\n| |_) | |/ _` |_  / _` |\n|  __/| | (_| |/ / (_| |\n|_|   |_|\\__,_/___\\__,_|"))
	fmt.Printf("%s v%s\n", color.New(color.FgHiYellow).Add(color.Bold).Sprintf("Plaza"), pkg.AppVersion)
	fmt.Printf("The personalized feed service\n")
	color.HiBlack("=====================================================\n")

	// Configure settings
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}

	// Connect to database
	if err := database.NewGorm(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connect to database.")
	} else if err := database.RunMigration(database.C); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when running database auto migration.")
	}

	// Process-local cache
	if err := cache.NewStore(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when setting up the cache store.")
	}

	// Stores
	postStore := stores.NewGormPostStore(database.C)
	pollStore := stores.NewGormPollStore(database.C)

	identity := stores.NewMemoryIdentity()
	blocks := stores.NewMemoryBlocks()
	engagement := stores.NewMemoryEngagement()
	lists := stores.NewMemoryLists()
	links := stores.NewMemoryLinks()
	preferences := stores.NewMemoryPreferences()

	// Seen set, shared when redis is configured and in-process otherwise
	seenTTL := services.DefaultSeenTTL
	if viper.IsSet("seen.ttl") {
		seenTTL = viper.GetDuration("seen.ttl")
	}
	seenCap := services.DefaultSeenCap
	if viper.IsSet("seen.cap") {
		seenCap = viper.GetInt("seen.cap")
	}
	memSeen := stores.NewMemorySeenStore(seenTTL, seenCap)
	var sharedSeen stores.SeenStore
	if addr := viper.GetString("seen.redis_addr"); len(addr) > 0 {
		client := redis.NewClient(&redis.Options{Addr: addr})
		sharedSeen = stores.NewRedisSeenStore(client, seenTTL, seenCap)
		log.Info().Str("addr", addr).Msg("Using the shared seen set store.")
	}
	tracker := services.NewSeenTracker(sharedSeen, memSeen)

	// Services
	ranker := services.NewRanker(rankingSettings())
	hydrator := services.NewHydrator(postStore, pollStore, identity, links, cache.S)
	viewers := services.NewViewerContextBuilder(identity, blocks, engagement, preferences, cache.S)
	views := services.NewViewQueue()

	feed := services.NewFeedService(
		postStore,
		engagement,
		lists,
		tracker,
		ranker,
		hydrator,
		viewers,
		views,
		feedSettings(),
	)
	posts := services.NewPostService(postStore)

	// Configure timed tasks
	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	quartz.AddFunc("@every 5m", memSeen.Sweep)
	quartz.AddFunc("@every 60m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		views.Flush(ctx, postStore)
	})
	quartz.Start()

	// Server
	go http.NewServer(api.Dependencies{Feed: feed, Posts: posts}).Listen()

	// Messages
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	quartz.Stop()
}

func feedSettings() services.FeedConfig {
	cfg := services.DefaultFeedConfig()
	if viper.IsSet("feed.default_limit") {
		cfg.DefaultLimit = viper.GetInt("feed.default_limit")
	}
	if viper.IsSet("feed.max_limit") {
		cfg.MaxLimit = viper.GetInt("feed.max_limit")
	}
	if viper.IsSet("feed.overfetch") {
		cfg.Overfetch = viper.GetInt("feed.overfetch")
	}
	return cfg
}

func rankingSettings() services.RankingConfig {
	cfg := services.DefaultRankingConfig()
	if viper.IsSet("ranking.epsilon") {
		cfg.Epsilon = viper.GetFloat64("ranking.epsilon")
	}
	if viper.IsSet("ranking.trending_window") {
		cfg.TrendingWindow = viper.GetDuration("ranking.trending_window")
	}
	if viper.IsSet("ranking.engagement_weight") {
		cfg.EngagementWeight = viper.GetFloat64("ranking.engagement_weight")
	}
	if viper.IsSet("ranking.author_weight") {
		cfg.AuthorWeight = viper.GetFloat64("ranking.author_weight")
	}
	if viper.IsSet("ranking.topic_weight") {
		cfg.TopicWeight = viper.GetFloat64("ranking.topic_weight")
	}
	if viper.IsSet("ranking.type_weight") {
		cfg.TypeWeight = viper.GetFloat64("ranking.type_weight")
	}
	if viper.IsSet("ranking.recency_weight") {
		cfg.RecencyWeight = viper.GetFloat64("ranking.recency_weight")
	}
	return cfg
}
