package repositories

import (
	"errors"
	"testing"

	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
)

func TestJobRepositoryErrors(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewJobRepository(db)
			job := models.NewJob(0, "")

			if err := repo.Create(job); err == nil {
				t.Fatal("expected validation error for empty playlist ID")
			}
		})

		t.Run("InvalidStatus", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewJobRepository(db)
			job := models.NewJob(0, "playlist123")
			job.SetStatus("interpretive_dance")

			if err := repo.Create(job); err == nil {
				t.Fatal("expected validation error for unknown status")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewJobRepository(db)

			_, err := repo.Get("nonexistent-id")
			if err == nil {
				t.Fatal("expected error when getting nonexistent job")
			}
			if !errors.Is(err, shared.ErrJobNotFound) {
				t.Errorf("expected ErrJobNotFound, got %v", err)
			}
		})

		t.Run("Deleted", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewJobRepository(db)
			job := models.NewJob(0, "playlist123")

			if err := repo.Create(job); err != nil {
				t.Fatalf("failed to create job: %v", err)
			}
			if err := repo.Delete(job.ID()); err != nil {
				t.Fatalf("failed to delete job: %v", err)
			}

			_, err := repo.Get(job.ID())
			if !errors.Is(err, shared.ErrJobNotFound) {
				t.Errorf("expected ErrJobNotFound for deleted job, got %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewJobRepository(db)
			job := models.NewJob(0, "playlist123")
			job.SetID("nonexistent-id")

			err := repo.Update(job)
			if !errors.Is(err, shared.ErrJobNotFound) {
				t.Errorf("expected ErrJobNotFound, got %v", err)
			}
		})

		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewJobRepository(db)
			job := models.NewJob(0, "playlist123")

			if err := repo.Create(job); err != nil {
				t.Fatalf("failed to create job: %v", err)
			}

			job.SetStatus("interpretive_dance")
			if err := repo.Update(job); err == nil {
				t.Fatal("expected validation error for unknown status")
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewJobRepository(db)

			err := repo.Delete("nonexistent-id")
			if !errors.Is(err, shared.ErrJobNotFound) {
				t.Errorf("expected ErrJobNotFound, got %v", err)
			}
		})

		t.Run("AlreadyDeleted", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewJobRepository(db)
			job := models.NewJob(0, "playlist123")

			if err := repo.Create(job); err != nil {
				t.Fatalf("failed to create job: %v", err)
			}
			if err := repo.Delete(job.ID()); err != nil {
				t.Fatalf("failed to delete job: %v", err)
			}

			err := repo.Delete(job.ID())
			if !errors.Is(err, shared.ErrJobNotFound) {
				t.Errorf("expected ErrJobNotFound for double delete, got %v", err)
			}
		})
	})

	t.Run("List", func(t *testing.T) {
		t.Run("ExcludesDeleted", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewJobRepository(db)

			kept := models.NewJob(0, "playlist123")
			if err := repo.Create(kept); err != nil {
				t.Fatalf("failed to create kept job: %v", err)
			}

			removed := models.NewJob(0, "playlist456")
			if err := repo.Create(removed); err != nil {
				t.Fatalf("failed to create removed job: %v", err)
			}
			if err := repo.Delete(removed.ID()); err != nil {
				t.Fatalf("failed to delete job: %v", err)
			}

			jobs, err := repo.List(map[string]any{})
			if err != nil {
				t.Fatalf("failed to list jobs: %v", err)
			}

			if len(jobs) != 1 {
				t.Fatalf("expected 1 job, got %d", len(jobs))
			}
			if jobs[0].ID() != kept.ID() {
				t.Errorf("expected kept job, got %s", jobs[0].ID())
			}
		})
	})
}
