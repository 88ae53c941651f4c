package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pawhaven/petcare-api/internal/models"
	"github.com/pawhaven/petcare-api/pkg/export"
	"github.com/pawhaven/petcare-api/pkg/storage"
)

type occupancyReader interface {
	OccupancyByDay(ctx context.Context, from, to time.Time) ([]models.OccupancyRow, error)
}

type staffLoadReader interface {
	LoadByStaffAndDay(ctx context.Context, from, to time.Time) ([]models.StaffLoadRow, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	occupancy occupancyReader
	staffLoad staffLoadReader
	storage   fileStorage
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(occupancy occupancyReader, staffLoad staffLoadReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		occupancy: occupancy,
		staffLoad: staffLoad,
		storage:   store,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	table, err := s.buildTable(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = export.RenderCSV(table)
	case models.ReportFormatPDF:
		payload, err = export.RenderPDF(table)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *ExportService) buildTable(ctx context.Context, job *models.ReportJob) (export.Table, error) {
	switch job.Type {
	case models.ReportTypeOccupancy:
		rows, err := s.occupancy.OccupancyByDay(ctx, job.Params.From, job.Params.To)
		if err != nil {
			return export.Table{}, err
		}
		table := export.Table{
			Title:   "Cage Occupancy",
			Headers: []string{"Day", "Occupied", "Capacity", "Utilization"},
		}
		for _, row := range rows {
			utilization := "0%"
			if row.Capacity > 0 {
				utilization = fmt.Sprintf("%.0f%%", float64(row.Occupied)/float64(row.Capacity)*100)
			}
			table.Rows = append(table.Rows, []string{
				row.Day.Format("2006-01-02"),
				strconv.Itoa(row.Occupied),
				strconv.Itoa(row.Capacity),
				utilization,
			})
		}
		return table, nil
	case models.ReportTypeStaffLoad:
		rows, err := s.staffLoad.LoadByStaffAndDay(ctx, job.Params.From, job.Params.To)
		if err != nil {
			return export.Table{}, err
		}
		table := export.Table{
			Title:   "Staff Load",
			Headers: []string{"Date", "Staff", "Tasks"},
		}
		for _, row := range rows {
			table.Rows = append(table.Rows, []string{
				row.Date.Format("2006-01-02"),
				row.StaffID,
				strconv.Itoa(row.TaskCount),
			})
		}
		return table, nil
	default:
		return export.Table{}, fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	ext := "csv"
	if job.Params.Format == models.ReportFormatPDF {
		ext = "pdf"
	}
	return fmt.Sprintf("%s-%s-%s.%s", job.Type, job.Params.From.Format("20060102"), job.ID, ext)
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns the stored export file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes stored exports older than the TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	return s.storage.CleanupOlderThan(ttl)
}
