// Package config loads and validates ingestion run files.
//
// A run file is YAML. It names the source object, the decode and output
// settings, the target schema and, optionally, where to stage the artifact
// and which warehouse table to load it into.
//
// # Example
//
//	name: badge-access
//	log:
//	  level: info
//	source:
//	  store:
//	    provider: minio
//	    endpoint: http://minio:9000
//	    access_key_id: ${MINIO_ACCESS_KEY}
//	    secret_access_key: ${MINIO_SECRET_KEY}
//	  bucket: raw
//	  key: exports/access.txt.gz
//	transform:
//	  file_type: txt
//	  text_layout: logblock
//	  output_format: csv
//	  output_directory: /tmp/ingest/access
//	schema:
//	  expected_columns:
//	    - name: status
//	      enforce_not_null: true
//	    - name: name
//	staging:
//	  bucket: staging
//	  key: access/access.csv
//	warehouse:
//	  type: snowflake
//	  dsn: ${SNOWFLAKE_DSN}
//	  table_name: RAW.PUBLIC.ACCESS_LOGS
//	  stage_name: raw_stage
//	  file_format: csv_format
//
// output_directory is the artifact path without its extension; the run above
// writes /tmp/ingest/access.csv.
//
// # Environment
//
// ${VAR} and ${VAR:-default} are substituted before the file is parsed.
// Afterwards any key can be overridden with an INGEST_ variable whose name is
// the upper-cased key path joined by underscores:
//
//	INGEST_TRANSFORM_OUTPUT_FORMAT=parquet ingest run --config run.yaml
package config
