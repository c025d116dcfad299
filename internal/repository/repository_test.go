package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/gomediastore/internal/config"
	"github.com/bigkaa/gomediastore/internal/database"
	"github.com/bigkaa/gomediastore/internal/domain/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("mediastore_test"),
		postgres.WithUsername("mediastore"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	t.Setenv("DM_DB_HOST", host)
	t.Setenv("DM_DB_PORT", port.Port())
	t.Setenv("DM_DB_NAME", "mediastore_test")
	t.Setenv("DM_DB_USER", "mediastore")
	t.Setenv("DM_DB_PASSWORD", "test-password")
	t.Setenv("DM_DB_SSL_MODE", "disable")
	t.Setenv("DM_AUTH_ISSUER_URL", "http://localhost:8080/realms/mediastore")
	t.Setenv("DM_ACCESS_TOKEN_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// newTestAsset возвращает готовый к регистрации ассет.
func newTestAsset(projectID string) *model.Asset {
	return &model.Asset{
		AssetID:          uuid.New().String(),
		ProjectID:        projectID,
		OriginalFilename: "ceremony.jpg",
		AssetType:        model.TypeRaw,
		Status:           model.StatusUploaded,
		ApprovalStatus:   model.ApprovalNone,
		ContentType:      "image/jpeg",
		Size:             2048,
		StorageRef:       "se-01/" + uuid.New().String(),
		Tags:             []string{"Wedding", "outdoor"},
		UploadedBy:       "olga",
	}
}

func TestAssetRepository_CreateAndGet(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAssetRepository(pool)
	ctx := context.Background()

	a := newTestAsset(uuid.New().String())
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}
	if a.Version != 1 {
		t.Errorf("Version после Create = %d, ожидается 1", a.Version)
	}

	got, err := repo.GetByID(ctx, a.AssetID)
	if err != nil {
		t.Fatalf("GetByID() вернул ошибку: %v", err)
	}
	if got.OriginalFilename != a.OriginalFilename {
		t.Errorf("OriginalFilename = %q, ожидается %q", got.OriginalFilename, a.OriginalFilename)
	}
	if got.FocalPoint != nil {
		t.Errorf("FocalPoint = %v, ожидается nil", got.FocalPoint)
	}
	if len(got.Tags) != 2 {
		t.Errorf("len(Tags) = %d, ожидается 2", len(got.Tags))
	}

	// Повторная регистрация того же ID — ErrConflict
	if err := repo.Create(ctx, a); !errors.Is(err, ErrConflict) {
		t.Errorf("повторный Create() = %v, ожидается ErrConflict", err)
	}

	// Несуществующий ID — ErrNotFound
	if _, err := repo.GetByID(ctx, uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(несуществующий) = %v, ожидается ErrNotFound", err)
	}
}

func TestAssetRepository_UpdateMetadata(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAssetRepository(pool)
	ctx := context.Background()

	a := newTestAsset(uuid.New().String())
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	title := "Церемония"
	a.Title = &title
	a.FocalPoint = &model.FocalPoint{X: 0.3, Y: 0.7}
	if err := repo.UpdateMetadata(ctx, a); err != nil {
		t.Fatalf("UpdateMetadata() вернул ошибку: %v", err)
	}
	if a.Version != 2 {
		t.Errorf("Version после обновления = %d, ожидается 2", a.Version)
	}

	got, err := repo.GetByID(ctx, a.AssetID)
	if err != nil {
		t.Fatalf("GetByID() вернул ошибку: %v", err)
	}
	if got.Title == nil || *got.Title != title {
		t.Errorf("Title не сохранён")
	}
	if got.FocalPoint == nil || got.FocalPoint.X != 0.3 || got.FocalPoint.Y != 0.7 {
		t.Errorf("FocalPoint = %v, ожидается {0.3 0.7}", got.FocalPoint)
	}

	// Устаревшая версия — ErrStaleTransition
	stale := *got
	stale.Version = 1
	if err := repo.UpdateMetadata(ctx, &stale); !errors.Is(err, ErrStaleTransition) {
		t.Errorf("UpdateMetadata(устаревшая версия) = %v, ожидается ErrStaleTransition", err)
	}
}

func TestAssetRepository_IngestTransitions(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAssetRepository(pool)
	ctx := context.Background()

	a := newTestAsset(uuid.New().String())
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	if err := repo.SetIngestStatus(ctx, a.AssetID, model.StatusUploaded, model.StatusProcessing); err != nil {
		t.Fatalf("SetIngestStatus(uploaded→processing) вернул ошибку: %v", err)
	}

	// Условие WHERE не прошло: статус уже не uploaded
	err := repo.SetIngestStatus(ctx, a.AssetID, model.StatusUploaded, model.StatusProcessing)
	if !errors.Is(err, ErrStaleTransition) {
		t.Errorf("повторный SetIngestStatus = %v, ожидается ErrStaleTransition", err)
	}

	width, height := 4000, 3000
	thumb := "se-01/thumb"
	res := TranscodeResult{
		Status:       model.StatusReady,
		ThumbnailRef: &thumb,
		Width:        &width,
		Height:       &height,
	}
	if err := repo.ApplyTranscodeResult(ctx, a.AssetID, res); err != nil {
		t.Fatalf("ApplyTranscodeResult() вернул ошибку: %v", err)
	}

	got, err := repo.GetByID(ctx, a.AssetID)
	if err != nil {
		t.Fatalf("GetByID() вернул ошибку: %v", err)
	}
	if got.Status != model.StatusReady {
		t.Errorf("Status = %s, ожидается ready", got.Status)
	}
	if got.Width == nil || *got.Width != 4000 {
		t.Errorf("Width не применён")
	}
	if got.ThumbnailRef == nil || *got.ThumbnailRef != thumb {
		t.Errorf("ThumbnailRef не применён")
	}
}

func TestAssetRepository_MarkDeliverable(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAssetRepository(pool)
	ctx := context.Background()

	a := newTestAsset(uuid.New().String())
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}

	expires := time.Now().Add(24 * time.Hour).UTC()

	// Ассет ещё не ready — классификация не проходит
	if err := repo.MarkDeliverable(ctx, a.AssetID, expires); !errors.Is(err, ErrStaleTransition) {
		t.Fatalf("MarkDeliverable(не ready) = %v, ожидается ErrStaleTransition", err)
	}

	if err := repo.SetIngestStatus(ctx, a.AssetID, model.StatusUploaded, model.StatusProcessing); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetIngestStatus(ctx, a.AssetID, model.StatusProcessing, model.StatusReady); err != nil {
		t.Fatal(err)
	}

	if err := repo.MarkDeliverable(ctx, a.AssetID, expires); err != nil {
		t.Fatalf("MarkDeliverable() вернул ошибку: %v", err)
	}

	got, _ := repo.GetByID(ctx, a.AssetID)
	if got.AssetType != model.TypeDeliverable {
		t.Errorf("AssetType = %s, ожидается deliverable", got.AssetType)
	}
	if got.ApprovalStatus != model.ApprovalPending {
		t.Errorf("ApprovalStatus = %s, ожидается pending", got.ApprovalStatus)
	}

	// Согласуем и повторно классифицируем — статус согласования сохраняется
	if err := repo.SetApprovalStatus(ctx, a.AssetID, model.ApprovalPending, model.ApprovalApproved); err != nil {
		t.Fatalf("SetApprovalStatus() вернул ошибку: %v", err)
	}
	later := expires.Add(48 * time.Hour)
	if err := repo.MarkDeliverable(ctx, a.AssetID, later); err != nil {
		t.Fatalf("повторный MarkDeliverable() вернул ошибку: %v", err)
	}

	got, _ = repo.GetByID(ctx, a.AssetID)
	if got.ApprovalStatus != model.ApprovalApproved {
		t.Errorf("повторная классификация сбросила статус согласования: %s", got.ApprovalStatus)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(later) {
		t.Errorf("ExpiresAt не обновлён: %v", got.ExpiresAt)
	}

	// Запрошена доработка — повторная классификация возвращает pending
	if err := repo.SetApprovalStatus(ctx, a.AssetID, model.ApprovalApproved, model.ApprovalRevisionRequested); err != nil {
		t.Fatalf("SetApprovalStatus() вернул ошибку: %v", err)
	}
	if err := repo.MarkDeliverable(ctx, a.AssetID, later); err != nil {
		t.Fatalf("MarkDeliverable(после доработки) вернул ошибку: %v", err)
	}
	got, _ = repo.GetByID(ctx, a.AssetID)
	if got.ApprovalStatus != model.ApprovalPending {
		t.Errorf("ApprovalStatus = %s, ожидается pending после доработки", got.ApprovalStatus)
	}
}

// TestAssetRepository_ApprovalRace: из двух конкурирующих решений
// побеждает ровно одно.
func TestAssetRepository_ApprovalRace(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAssetRepository(pool)
	ctx := context.Background()

	a := newTestAsset(uuid.New().String())
	if err := repo.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetIngestStatus(ctx, a.AssetID, model.StatusUploaded, model.StatusProcessing); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetIngestStatus(ctx, a.AssetID, model.StatusProcessing, model.StatusReady); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkDeliverable(ctx, a.AssetID, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	// Первое решение проходит
	if err := repo.SetApprovalStatus(ctx, a.AssetID, model.ApprovalPending, model.ApprovalApproved); err != nil {
		t.Fatalf("первое решение вернуло ошибку: %v", err)
	}

	// Второе решение по тому же pending не проходит
	err := repo.SetApprovalStatus(ctx, a.AssetID, model.ApprovalPending, model.ApprovalRevisionRequested)
	if !errors.Is(err, ErrStaleTransition) {
		t.Errorf("второе решение = %v, ожидается ErrStaleTransition", err)
	}

	got, _ := repo.GetByID(ctx, a.AssetID)
	if got.ApprovalStatus != model.ApprovalApproved {
		t.Errorf("ApprovalStatus = %s, ожидается approved", got.ApprovalStatus)
	}
}

func TestAssetRepository_Counters(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAssetRepository(pool)
	ctx := context.Background()

	a := newTestAsset(uuid.New().String())
	if err := repo.Create(ctx, a); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := repo.IncrementViewCount(ctx, a.AssetID); err != nil {
			t.Fatalf("IncrementViewCount() вернул ошибку: %v", err)
		}
	}
	if err := repo.IncrementDownloadCount(ctx, a.AssetID); err != nil {
		t.Fatalf("IncrementDownloadCount() вернул ошибку: %v", err)
	}

	got, _ := repo.GetByID(ctx, a.AssetID)
	if got.ViewCount != 3 {
		t.Errorf("ViewCount = %d, ожидается 3", got.ViewCount)
	}
	if got.DownloadCount != 1 {
		t.Errorf("DownloadCount = %d, ожидается 1", got.DownloadCount)
	}
}

func TestAssetRepository_RevokeExpired(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAssetRepository(pool)
	ctx := context.Background()
	projectID := uuid.New().String()

	makeDeliverable := func(expires time.Time) string {
		a := newTestAsset(projectID)
		if err := repo.Create(ctx, a); err != nil {
			t.Fatal(err)
		}
		if err := repo.SetIngestStatus(ctx, a.AssetID, model.StatusUploaded, model.StatusProcessing); err != nil {
			t.Fatal(err)
		}
		if err := repo.SetIngestStatus(ctx, a.AssetID, model.StatusProcessing, model.StatusReady); err != nil {
			t.Fatal(err)
		}
		if err := repo.MarkDeliverable(ctx, a.AssetID, expires); err != nil {
			t.Fatal(err)
		}
		return a.AssetID
	}

	now := time.Now().UTC()
	expiredID := makeDeliverable(now.Add(-time.Hour))
	aliveID := makeDeliverable(now.Add(time.Hour))

	revoked, err := repo.RevokeExpired(ctx, now)
	if err != nil {
		t.Fatalf("RevokeExpired() вернул ошибку: %v", err)
	}
	if revoked != 1 {
		t.Errorf("RevokeExpired() = %d, ожидается 1", revoked)
	}

	got, _ := repo.GetByID(ctx, expiredID)
	if !got.AccessRevoked {
		t.Errorf("у истёкшего ассета AccessRevoked = false")
	}
	got, _ = repo.GetByID(ctx, aliveID)
	if got.AccessRevoked {
		t.Errorf("у действующего ассета AccessRevoked = true")
	}

	// Повторный вызов ничего не отзывает
	revoked, err = repo.RevokeExpired(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if revoked != 0 {
		t.Errorf("повторный RevokeExpired() = %d, ожидается 0", revoked)
	}
}

func TestAssetRepository_SnapshotAndSoftDelete(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAssetRepository(pool)
	ctx := context.Background()
	projectID := uuid.New().String()

	first := newTestAsset(projectID)
	second := newTestAsset(projectID)
	other := newTestAsset(uuid.New().String())
	for _, a := range []*model.Asset{first, second, other} {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	snapshot, err := repo.SnapshotByProject(ctx, projectID)
	if err != nil {
		t.Fatalf("SnapshotByProject() вернул ошибку: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("len(snapshot) = %d, ожидается 2", len(snapshot))
	}

	if err := repo.SoftDelete(ctx, first.AssetID); err != nil {
		t.Fatalf("SoftDelete() вернул ошибку: %v", err)
	}

	// Повторное удаление — ErrNotFound
	if err := repo.SoftDelete(ctx, first.AssetID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный SoftDelete() = %v, ожидается ErrNotFound", err)
	}

	snapshot, err = repo.SnapshotByProject(ctx, projectID)
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshot) != 1 {
		t.Errorf("len(snapshot) после удаления = %d, ожидается 1", len(snapshot))
	}
	if snapshot[0].AssetID != second.AssetID {
		t.Errorf("в снимке остался не тот ассет: %s", snapshot[0].AssetID)
	}

	// Удалённый ассет всё ещё доступен по ID
	got, err := repo.GetByID(ctx, first.AssetID)
	if err != nil {
		t.Fatalf("GetByID(удалённый) вернул ошибку: %v", err)
	}
	if got.Status != model.StatusDeleted {
		t.Errorf("Status = %s, ожидается deleted", got.Status)
	}
}

func TestAssetRepository_Annotations(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAssetRepository(pool)
	ctx := context.Background()

	a := newTestAsset(uuid.New().String())
	if err := repo.Create(ctx, a); err != nil {
		t.Fatal(err)
	}

	timecode := 12.5
	an := &model.Annotation{
		AnnotationID:    uuid.New().String(),
		AssetID:         a.AssetID,
		AuthorName:      "Анна",
		Text:            "Сделать кадр светлее",
		TimecodeSeconds: &timecode,
	}
	if err := repo.AddAnnotation(ctx, an); err != nil {
		t.Fatalf("AddAnnotation() вернул ошибку: %v", err)
	}

	// Аннотация к несуществующему ассету — ErrNotFound
	orphan := &model.Annotation{
		AnnotationID: uuid.New().String(),
		AssetID:      uuid.New().String(),
		AuthorName:   "Анна",
		Text:         "текст",
	}
	if err := repo.AddAnnotation(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddAnnotation(несуществующий ассет) = %v, ожидается ErrNotFound", err)
	}

	list, err := repo.ListAnnotations(ctx, a.AssetID)
	if err != nil {
		t.Fatalf("ListAnnotations() вернул ошибку: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(annotations) = %d, ожидается 1", len(list))
	}
	if list[0].TimecodeSeconds == nil || *list[0].TimecodeSeconds != 12.5 {
		t.Errorf("TimecodeSeconds не сохранён")
	}
	if list[0].Resolved {
		t.Errorf("новая аннотация помечена resolved")
	}

	if err := repo.ResolveAnnotation(ctx, an.AnnotationID); err != nil {
		t.Fatalf("ResolveAnnotation() вернул ошибку: %v", err)
	}
	list, _ = repo.ListAnnotations(ctx, a.AssetID)
	if !list[0].Resolved {
		t.Errorf("аннотация не помечена resolved")
	}
}
