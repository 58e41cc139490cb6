package apitest

import (
	"time"

	"github.com/tgienger/tasktrack/internal/models"
)

func ptr[T any](v T) *T { return &v }

// Seed ids that tests rely on
const (
	AdminID   int64 = 1
	JaneID    int64 = 2
	BobID     int64 = 3
	RetiredID int64 = 4

	CompressorProjectID int64 = 1
	PumpProjectID       int64 = 2
	ToolchainProjectID  int64 = 3
)

// seed fills the store with a small, deterministic data set
func (s *Server) seed() {
	s.users = []models.User{
		{ID: AdminID, UserID: "admin", Username: "admin", FullName: "Administrator", Role: "admin", Title: models.AdminTitle, IsActive: ptr(true)},
		{ID: JaneID, UserID: "E1002", Username: "jdoe", FullName: "Jane Doe", Role: "manager", Title: "Engineering Manager", IsActive: ptr(true)},
		{ID: BobID, UserID: "E1003", Username: "bsmith", FullName: "", Role: "employee", Title: "Firmware Engineer", IsActive: ptr(true)},
		{ID: RetiredID, UserID: "E0999", Username: "old", FullName: "Former Employee", Role: "employee", Title: "Test Engineer", IsActive: ptr(false)},
	}
	s.projects = []models.Project{
		{ID: CompressorProjectID, Name: "Platform_800V_45CC", Status: "in_progress", Category: &models.Category{Name: "E-Compressor", Type: "product"}},
		{ID: PumpProjectID, Name: "HR18", Status: "in_progress", Category: &models.Category{Name: "E-CoolingPump", Type: "product"}},
		{ID: ToolchainProjectID, Name: "Toolchain", Status: "planning", Category: &models.Category{Name: "Toolchain", Type: "function"}},
	}

	base := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	s.tasks = []*models.Task{
		{
			ID: 1, Title: "Bootloader CRC check", Description: "Verify image **CRC** before jump.",
			Type: "feature", Status: models.StatusInProgress, Priority: models.PriorityHigh, Severity: models.SeverityMajor,
			ProjectID: CompressorProjectID, AssigneeID: ptr(JaneID),
			StartDate: models.At(base), DueDate: models.At(base.Add(14 * day)),
			CreatedAt: models.At(base), UpdatedAt: models.At(base),
		},
		{
			ID: 2, Title: "CAN timeout on cold start", Description: "Reproduces below -20C.",
			Type: "bug", Status: models.StatusTodo, Priority: models.PriorityUrgent, Severity: models.SeverityCritical,
			ProjectID: PumpProjectID, AssigneeID: ptr(BobID),
			DueDate:   models.At(base.Add(3 * day)),
			CreatedAt: models.At(base.Add(day)), UpdatedAt: models.At(base.Add(day)),
		},
		{
			ID: 3, Title: "document build flags", Description: "",
			Type: "improvement", Status: models.StatusReview, Priority: models.PriorityLow, Severity: models.SeverityTrivial,
			ProjectID: ToolchainProjectID,
			CreatedAt: models.At(base.Add(2 * day)), UpdatedAt: models.At(base.Add(2 * day)),
		},
		{
			ID: 4, Title: "Archive 2023 calibration data", Description: "Move to cold storage.",
			Type: "task", Status: models.StatusDone, Priority: models.PriorityMedium, Severity: models.SeverityNormal,
			ProjectID: CompressorProjectID, AssigneeID: ptr(JaneID),
			DueDate:   models.At(base.Add(-7 * day)),
			CreatedAt: models.At(base.Add(3 * day)), UpdatedAt: models.At(base.Add(3 * day)),
		},
	}
	s.nextTask = 4

	s.comments = map[int64][]*models.Comment{
		1: {
			{ID: 1, TaskID: 1, Content: "Started on the CRC table.", CreatedAt: models.At(base.Add(time.Hour)), Author: s.users[1].Ref(), Attachments: []models.Attachment{}},
			{ID: 2, TaskID: 1, Content: "Log from the bench run attached.", CreatedAt: models.At(base.Add(2 * time.Hour)), Author: s.users[2].Ref(),
				Attachments: []models.Attachment{{ID: 1, Filename: "bench.log", DownloadURL: "/api/attachments/1"}}},
		},
	}
	s.nextComment = 2
	s.attachments = map[int64]*attachment{
		1: {
			Attachment:  models.Attachment{ID: 1, Filename: "bench.log", DownloadURL: "/api/attachments/1"},
			commentID:   2,
			contentType: "text/plain",
			data:        []byte("crc ok\n"),
		},
	}
	s.nextAttach = 1
}
