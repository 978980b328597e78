package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"classhub/internal/accounts"
	"classhub/internal/audit"
	"classhub/internal/classroom"
	"classhub/internal/forum"
	"classhub/internal/markup"
	"classhub/internal/platform/config"
	"classhub/internal/platform/httpserver"
	"classhub/internal/platform/logger"
	"classhub/internal/platform/metrics"
	platformredis "classhub/internal/platform/redis"
	"classhub/internal/token"
	httptransport "classhub/internal/transport/http"
	"classhub/internal/transport/http/shared"
	"classhub/migrations"
	"classhub/pkg/platform/tx"
)

// main wires storage, services and the HTTP router, then runs the server and
// the audit worker until interrupted. Business logic lives in the internal
// service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// stores groups every persistence dependency so run can swap the whole set
// between Postgres and the in-memory zero-config path.
type stores struct {
	users  accounts.UserStore
	roles  accounts.RoleStore
	follow accounts.FollowStore
	clicks accounts.ClickTimeStore

	posts    forum.PostStore
	comments forum.CommentStore
	letters  forum.LetterStore
	atmes    forum.AtMeStore
	collects forum.CollectStore

	lessons     classroom.LessonStore
	offerings   classroom.NewLessonStore
	students    classroom.StudentStore
	teachers    classroom.TeacherStore
	lessonFiles classroom.LessonFileStore

	audit audit.Store

	runner tx.Runner
	pinger httptransport.Pinger
}

func openStores(cfg config.Server, log *slog.Logger) (stores, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		posts := forum.NewInMemoryPostStore()
		return stores{
			users:       accounts.NewInMemoryUserStore(),
			roles:       accounts.NewInMemoryRoleStore(),
			follow:      accounts.NewInMemoryFollowStore(),
			clicks:      accounts.NewInMemoryClickTimeStore(),
			posts:       posts,
			comments:    forum.NewInMemoryCommentStore(posts),
			letters:     forum.NewInMemoryLetterStore(),
			atmes:       forum.NewInMemoryAtMeStore(),
			collects:    forum.NewInMemoryCollectStore(),
			lessons:     classroom.NewInMemoryLessonStore(),
			offerings:   classroom.NewInMemoryNewLessonStore(),
			students:    classroom.NewInMemoryStudentStore(),
			teachers:    classroom.NewInMemoryTeacherStore(),
			lessonFiles: classroom.NewInMemoryLessonFileStore(),
			audit:       audit.NewMemoryStore(),
			runner:      tx.NopRunner{},
		}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return stores{}, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrations.Up(db); err != nil {
		_ = db.Close()
		return stores{}, nil, err
	}

	return stores{
		users:       accounts.NewPostgresUserStore(db),
		roles:       accounts.NewPostgresRoleStore(db),
		follow:      accounts.NewPostgresFollowStore(db),
		clicks:      accounts.NewPostgresClickTimeStore(db),
		posts:       forum.NewPostgresPostStore(db),
		comments:    forum.NewPostgresCommentStore(db),
		letters:     forum.NewPostgresLetterStore(db),
		atmes:       forum.NewPostgresAtMeStore(db),
		collects:    forum.NewPostgresCollectStore(db),
		lessons:     classroom.NewPostgresLessonStore(db),
		offerings:   classroom.NewPostgresNewLessonStore(db),
		students:    classroom.NewPostgresStudentStore(db),
		teachers:    classroom.NewPostgresTeacherStore(db),
		lessonFiles: classroom.NewPostgresLessonFileStore(db),
		audit:       audit.NewPostgresStore(db),
		runner:      tx.NewSQLRunner(db),
		pinger:      db,
	}, func() { _ = db.Close() }, nil
}

// discussionCounter bridges offering stats to the forum's tagged post counts
// without the classroom package importing the forum one.
type discussionCounter struct {
	forum *forum.Service
}

func (c discussionCounter) DiscussionCount(ctx context.Context, newLessonID int64) (int, error) {
	return c.forum.PostCountByTag(ctx, forum.DiscussionTag(newLessonID))
}

func run(cfg config.Server, log *slog.Logger) error {
	st, closeStores, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.roles.Seed(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var registry token.UsedRegistry
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		registry = token.NewRedisRegistry(redisClient.Client)
	}
	tokens := token.New(cfg.SecretKey, registry)

	m := metrics.New()
	auditor := audit.NewPublisher(256)
	auditWorker := audit.NewWorker(st.audit, auditor)

	accountsSvc := accounts.NewService(st.users, st.roles, st.follow, st.clicks, tokens,
		accounts.WithTxRunner(st.runner),
		accounts.WithLogger(log),
		accounts.WithMetrics(m),
		accounts.WithAuditor(auditor),
		accounts.WithAdminEmail(cfg.AdminEmail),
	)

	renderer := markup.NewRenderer()

	forumSvc := forum.NewService(st.posts, st.comments, st.letters, st.atmes, st.collects,
		renderer, accountsSvc, accountsSvc,
		forum.WithTxRunner(st.runner),
		forum.WithLogger(log),
		forum.WithMetrics(m),
		forum.WithAuditor(auditor),
	)

	classroomSvc := classroom.NewService(st.lessons, st.offerings, st.students, st.teachers,
		st.lessonFiles, renderer, discussionCounter{forum: forumSvc},
		classroom.WithTxRunner(st.runner),
		classroom.WithLogger(log),
		classroom.WithAuditor(auditor),
	)

	links := shared.NewLinks(cfg.ExternalBaseURL)
	router := httptransport.NewRouter(httptransport.Deps{
		Users:     httptransport.NewUserHandler(accountsSvc, forumSvc, links, log, cfg.PostsPerPage),
		Posts:     httptransport.NewPostHandler(forumSvc, accountsSvc, links, log, cfg.PostsPerPage),
		Letters:   httptransport.NewLetterHandler(forumSvc, accountsSvc, links, log, cfg.PostsPerPage),
		Classroom: httptransport.NewClassroomHandler(classroomSvc, links, log),
		Verifier:  accountsSvc,
		Logger:    log,
		Metrics:   m,
		DB:        st.pinger,
	})

	srv := httpserver.New(cfg.Addr, router)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := auditWorker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("audit worker: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
