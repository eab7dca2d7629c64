package data

// BatchProcessor walks a row range in fixed-size windows.
type BatchProcessor struct {
	batchSize int
}

func NewBatchProcessor(batchSize int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 256
	}
	return &BatchProcessor{batchSize: batchSize}
}

// ProcessRows calls fn with half-open [start, end) windows covering n rows.
func (bp *BatchProcessor) ProcessRows(n int, fn func(start, end int) error) error {
	for start := 0; start < n; start += bp.batchSize {
		end := start + bp.batchSize
		if end > n {
			end = n
		}
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

func (bp *BatchProcessor) SetBatchSize(size int) {
	if size > 0 {
		bp.batchSize = size
	}
}

func (bp *BatchProcessor) GetBatchSize() int {
	return bp.batchSize
}
