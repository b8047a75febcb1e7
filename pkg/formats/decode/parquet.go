package decode

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/formats/columnar"
)

func decodeParquet(data []byte, log *zap.Logger) (*Decoded, error) {
	t, err := columnar.ReadParquet(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to process Parquet file")
	}

	log.Info("Parquet file processed", zap.Int("records", t.NumRows()))
	return &Decoded{Table: t}, nil
}
