package domain

// DownloadRepository persists download history.
type DownloadRepository interface {
	Create(download *Download) error
	Update(download *Download) error
	Delete(id string) error
	FindByID(id string) (*Download, error)
	FindAll(filters map[string]interface{}) ([]*Download, error)
	CountByStatus() (map[DownloadStatus]int64, error)
}
