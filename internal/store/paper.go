package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/litreview/engine/internal/model"
)

// UpsertPaper inserts a paper or returns the existing row when one
// already matches under the ordered duplicate hierarchy — DOI, then
// external ids, then content fingerprint — first match wins, mirroring
// deduplication/detector.py's check_duplicate (§4.9b).
func (s *Store) UpsertPaper(ctx context.Context, p model.Paper) (*model.Paper, error) {
	var out *model.Paper
	err := s.Transactionally(ctx, func(ctx context.Context) error {
		if p.DOI != nil && *p.DOI != "" {
			existing, err := s.FindPaperByDOI(ctx, *p.DOI)
			if err == nil {
				out = existing
				return nil
			}
			if err != ErrNotFound {
				return err
			}
		}
		for idType, idValue := range p.ExternalIDs {
			if idValue == "" {
				continue
			}
			existing, err := s.FindPaperByExternalID(ctx, idType, idValue)
			if err == nil {
				out = existing
				return nil
			}
			if err != ErrNotFound {
				return err
			}
		}
		existing, err := s.FindPaperByFingerprint(ctx, p.Fingerprint)
		if err == nil {
			out = existing
			return nil
		}
		if err != ErrNotFound {
			return err
		}

		p.ID = uuid.NewString()
		authors, err := json.Marshal(p.Authors)
		if err != nil {
			return fmt.Errorf("marshaling authors: %w", err)
		}
		var externalIDs []byte
		if p.ExternalIDs != nil {
			externalIDs, err = json.Marshal(p.ExternalIDs)
			if err != nil {
				return fmt.Errorf("marshaling external ids: %w", err)
			}
		}

		row := s.q(ctx).QueryRowContext(ctx, `
			INSERT INTO papers (paper_id, title, abstract, authors, year, venue, doi, external_ids, fingerprint, pdf_url, source)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			RETURNING paper_id, title, abstract, authors, year, venue, doi, external_ids, fingerprint, pdf_url, source, created_at
		`, p.ID, p.Title, p.Abstract, authors, p.Year, p.Venue, p.DOI, externalIDs, p.Fingerprint, p.PDFURL, p.Source)

		pp, err := scanPaper(row)
		if err != nil {
			return err
		}
		out = pp
		return nil
	})
	return out, err
}

// FindPaperByFingerprint looks up a paper by its dedup fingerprint.
func (s *Store) FindPaperByFingerprint(ctx context.Context, fingerprint string) (*model.Paper, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT paper_id, title, abstract, authors, year, venue, doi, external_ids, fingerprint, pdf_url, source, created_at
		FROM papers WHERE fingerprint = $1
	`, fingerprint)
	return scanPaper(row)
}

// FindPaperByDOI looks up a paper by DOI (case-insensitive, matching
// detector.py's check_doi_duplicate which lowercases before comparing).
func (s *Store) FindPaperByDOI(ctx context.Context, doi string) (*model.Paper, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT paper_id, title, abstract, authors, year, venue, doi, external_ids, fingerprint, pdf_url, source, created_at
		FROM papers WHERE doi ILIKE $1
	`, doi)
	return scanPaper(row)
}

// FindPaperByExternalID looks up a paper whose external_ids map carries
// idType -> idValue, grounded on detector.py's check_external_id_duplicate
// (there expressed as an all-rows scan; here as a JSONB containment
// lookup the database can index).
func (s *Store) FindPaperByExternalID(ctx context.Context, idType, idValue string) (*model.Paper, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT paper_id, title, abstract, authors, year, venue, doi, external_ids, fingerprint, pdf_url, source, created_at
		FROM papers WHERE external_ids @> jsonb_build_object($1::text, $2::text)
	`, idType, idValue)
	return scanPaper(row)
}

func scanPaper(row *sql.Row) (*model.Paper, error) {
	var (
		p                  model.Paper
		authorsRaw         []byte
		externalIDsRaw     []byte
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Abstract, &authorsRaw, &p.Year, &p.Venue, &p.DOI, &externalIDsRaw, &p.Fingerprint, &p.PDFURL, &p.Source, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning paper: %w", err)
	}
	if err := json.Unmarshal(authorsRaw, &p.Authors); err != nil {
		return nil, fmt.Errorf("unmarshaling authors: %w", err)
	}
	if len(externalIDsRaw) > 0 {
		if err := json.Unmarshal(externalIDsRaw, &p.ExternalIDs); err != nil {
			return nil, fmt.Errorf("unmarshaling external ids: %w", err)
		}
	}
	return &p, nil
}

// CreateJobPaperEvidence links a paper to a job's strategic ledger.
func (s *Store) CreateJobPaperEvidence(ctx context.Context, e model.JobPaperEvidence) (*model.JobPaperEvidence, error) {
	e.ID = uuid.NewString()
	row := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO job_paper_evidence (evidence_id, job_id, paper_id, run_id, evaluated, impact_score, hypo_ref_count, cumulative_conf, entity_density)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (job_id, paper_id) DO NOTHING
		RETURNING evidence_id, job_id, paper_id, run_id, evaluated, impact_score, hypo_ref_count, cumulative_conf, entity_density, created_at
	`, e.ID, e.JobID, e.PaperID, e.RunID, e.Evaluated, e.ImpactScore, e.HypoRefCount, e.CumulativeConf, e.EntityDensity)

	var out model.JobPaperEvidence
	if err := row.Scan(&out.ID, &out.JobID, &out.PaperID, &out.RunID, &out.Evaluated, &out.ImpactScore, &out.HypoRefCount, &out.CumulativeConf, &out.EntityDensity, &out.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return s.FindJobPaperEvidence(ctx, e.JobID, e.PaperID)
		}
		return nil, fmt.Errorf("inserting job paper evidence: %w", err)
	}
	return &out, nil
}

// FindJobPaperEvidence returns the evidence row for a (job, paper) pair.
func (s *Store) FindJobPaperEvidence(ctx context.Context, jobID int64, paperID string) (*model.JobPaperEvidence, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT evidence_id, job_id, paper_id, run_id, evaluated, impact_score, hypo_ref_count, cumulative_conf, entity_density, created_at
		FROM job_paper_evidence WHERE job_id = $1 AND paper_id = $2
	`, jobID, paperID)
	var out model.JobPaperEvidence
	if err := row.Scan(&out.ID, &out.JobID, &out.PaperID, &out.RunID, &out.Evaluated, &out.ImpactScore, &out.HypoRefCount, &out.CumulativeConf, &out.EntityDensity, &out.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning job paper evidence: %w", err)
	}
	return &out, nil
}

// UpdateJobPaperEvidence persists a freshly recomputed impact score
// without touching Evaluated: impact scoring runs every decision cycle
// (internal/signal.RecomputeImpactScores), long before the paper's own
// download/evaluation pass, so this must never flip the ledger flag the
// STRATEGIC_DOWNLOAD_TARGETED handler gates on.
func (s *Store) UpdateJobPaperEvidence(ctx context.Context, id string, impactScore, hypoRefCount, cumulativeConf, entityDensity float64) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE job_paper_evidence
		SET impact_score = $1, hypo_ref_count = $2, cumulative_conf = $3, entity_density = $4
		WHERE evidence_id = $5
	`, impactScore, hypoRefCount, cumulativeConf, entityDensity, id)
	if err != nil {
		return fmt.Errorf("updating job paper evidence: %w", err)
	}
	return nil
}

// MarkJobPaperEvidenceEvaluated flips a ledger row's Evaluated flag once
// the Strategic Paper Downloader has processed it (successfully or not),
// mirroring downloader.py's "mark as processed even if skipped" comment.
func (s *Store) MarkJobPaperEvidenceEvaluated(ctx context.Context, id string) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		UPDATE job_paper_evidence SET evaluated = true WHERE evidence_id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("marking job paper evidence evaluated: %w", err)
	}
	return nil
}

// FindPaperByID looks up a paper by its primary key, used by the
// Strategic Paper Downloader to resolve a ledger row's paper_id.
func (s *Store) FindPaperByID(ctx context.Context, id string) (*model.Paper, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT paper_id, title, abstract, authors, year, venue, doi, external_ids, fingerprint, pdf_url, source, created_at
		FROM papers WHERE paper_id = $1
	`, id)
	return scanPaper(row)
}

// ListJobPaperEvidence returns every evidence row for a job.
func (s *Store) ListJobPaperEvidence(ctx context.Context, jobID int64) ([]*model.JobPaperEvidence, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT evidence_id, job_id, paper_id, run_id, evaluated, impact_score, hypo_ref_count, cumulative_conf, entity_density, created_at
		FROM job_paper_evidence WHERE job_id = $1 ORDER BY impact_score DESC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing job paper evidence: %w", err)
	}
	defer rows.Close()

	var out []*model.JobPaperEvidence
	for rows.Next() {
		var e model.JobPaperEvidence
		if err := rows.Scan(&e.ID, &e.JobID, &e.PaperID, &e.RunID, &e.Evaluated, &e.ImpactScore, &e.HypoRefCount, &e.CumulativeConf, &e.EntityDensity, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning job paper evidence: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
