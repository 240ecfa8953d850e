package repository

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/lvdashuaibi/openvote/config"
	"github.com/lvdashuaibi/openvote/internal/model"
)

type MySQLRepository struct {
	masterDB *sql.DB
	slaveDB  *sql.DB
}

func NewMySQLRepository() (*MySQLRepository, error) {
	masterDB, err := sql.Open("mysql", config.AppConfig.MySQL.Master)
	if err != nil {
		return nil, fmt.Errorf("连接主数据库失败: %w", err)
	}

	masterDB.SetMaxOpenConns(config.AppConfig.MySQL.MaxOpenConns)
	masterDB.SetMaxIdleConns(config.AppConfig.MySQL.MaxIdleConns)
	masterDB.SetConnMaxLifetime(time.Hour)

	if err = masterDB.Ping(); err != nil {
		return nil, fmt.Errorf("主数据库连接测试失败: %w", err)
	}

	slaveDB, err := sql.Open("mysql", config.AppConfig.MySQL.Slave)
	if err != nil {
		return nil, fmt.Errorf("连接从数据库失败: %w", err)
	}

	slaveDB.SetMaxOpenConns(config.AppConfig.MySQL.MaxOpenConns)
	slaveDB.SetMaxIdleConns(config.AppConfig.MySQL.MaxIdleConns)
	slaveDB.SetConnMaxLifetime(time.Hour)

	if err = slaveDB.Ping(); err != nil {
		log.Printf("从数据库连接测试失败: %v，将使用主数据库代替", err)
		slaveDB = masterDB
	}

	return &MySQLRepository{
		masterDB: masterDB,
		slaveDB:  slaveDB,
	}, nil
}

const voterColumns = "id, name, age, mobile, email, address, aadhaar_number, password_hash, role, has_voted, created_at, updated_at"

func scanVoter(row interface{ Scan(...interface{}) error }) (*model.Voter, error) {
	var voter model.Voter
	var email sql.NullString
	err := row.Scan(
		&voter.ID,
		&voter.Name,
		&voter.Age,
		&voter.Mobile,
		&email,
		&voter.Address,
		&voter.AadhaarNumber,
		&voter.PasswordHash,
		&voter.Role,
		&voter.HasVoted,
		&voter.CreatedAt,
		&voter.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	voter.Email = email.String
	return &voter, nil
}

// GetVoter 按ID查询选民
func (r *MySQLRepository) GetVoter(id string) (*model.Voter, error) {
	query := "SELECT " + voterColumns + " FROM voters WHERE id = ?"
	voter, err := scanVoter(r.slaveDB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrVoterNotFound
		}
		return nil, model.NewStoreError("GetVoter", "voter", id, err)
	}
	return voter, nil
}

// GetVoterByAadhaar 按身份证号查询选民
func (r *MySQLRepository) GetVoterByAadhaar(aadhaar string) (*model.Voter, error) {
	query := "SELECT " + voterColumns + " FROM voters WHERE aadhaar_number = ?"
	voter, err := scanVoter(r.slaveDB.QueryRow(query, aadhaar))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrVoterNotFound
		}
		return nil, model.NewStoreError("GetVoterByAadhaar", "voter", aadhaar, err)
	}
	return voter, nil
}

// CreateVoter 创建选民
func (r *MySQLRepository) CreateVoter(voter *model.Voter) error {
	// 身份证号唯一，先查重给出业务错误而不是裸的唯一键冲突
	var exists int
	err := r.masterDB.QueryRow("SELECT COUNT(*) FROM voters WHERE aadhaar_number = ?", voter.AadhaarNumber).Scan(&exists)
	if err != nil {
		return model.NewStoreError("CreateVoter", "voter", voter.ID, err)
	}
	if exists > 0 {
		return model.ErrAadhaarTaken
	}

	query := `INSERT INTO voters (id, name, age, mobile, email, address, aadhaar_number, password_hash, role, has_voted, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.masterDB.Exec(query,
		voter.ID,
		voter.Name,
		voter.Age,
		voter.Mobile,
		voter.Email,
		voter.Address,
		voter.AadhaarNumber,
		voter.PasswordHash,
		voter.Role,
		voter.HasVoted,
		voter.CreatedAt,
		voter.UpdatedAt,
	)
	if err != nil {
		return model.NewStoreError("CreateVoter", "voter", voter.ID, err)
	}
	return nil
}

// CompareAndSetVoted 原子地将已投票标记从 false 置为 true
func (r *MySQLRepository) CompareAndSetVoted(id string) (bool, error) {
	result, err := r.masterDB.Exec(
		"UPDATE voters SET has_voted = 1, updated_at = NOW() WHERE id = ? AND has_voted = 0", id)
	if err != nil {
		return false, model.NewStoreError("CompareAndSetVoted", "voter", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, model.NewStoreError("CompareAndSetVoted", "voter", id, err)
	}
	return affected == 1, nil
}

// UpdateVoterPassword 更新选民密码散列
func (r *MySQLRepository) UpdateVoterPassword(id string, passwordHash string) error {
	result, err := r.masterDB.Exec(
		"UPDATE voters SET password_hash = ?, updated_at = NOW() WHERE id = ?", passwordHash, id)
	if err != nil {
		return model.NewStoreError("UpdateVoterPassword", "voter", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return model.NewStoreError("UpdateVoterPassword", "voter", id, err)
	}
	if affected == 0 {
		return model.ErrVoterNotFound
	}
	return nil
}

// GetCandidate 按ID查询候选人，附带投票者集合
func (r *MySQLRepository) GetCandidate(id string) (*model.Candidate, error) {
	query := "SELECT id, name, party, vote_count, created_at, updated_at FROM candidates WHERE id = ?"
	row := r.slaveDB.QueryRow(query, id)

	var candidate model.Candidate
	err := row.Scan(
		&candidate.ID,
		&candidate.Name,
		&candidate.Party,
		&candidate.VoteCount,
		&candidate.CreatedAt,
		&candidate.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrCandidateNotFound
		}
		return nil, model.NewStoreError("GetCandidate", "candidate", id, err)
	}

	voters, err := r.listCandidateVoters(r.slaveDB, id)
	if err != nil {
		return nil, err
	}
	candidate.Voters = voters

	return &candidate, nil
}

func (r *MySQLRepository) listCandidateVoters(db *sql.DB, candidateID string) ([]string, error) {
	rows, err := db.Query(
		"SELECT voter_id FROM candidate_voters WHERE candidate_id = ? ORDER BY voted_at", candidateID)
	if err != nil {
		return nil, model.NewStoreError("ListCandidateVoters", "candidate", candidateID, err)
	}
	defer rows.Close()

	var voters []string
	for rows.Next() {
		var voterID string
		if err := rows.Scan(&voterID); err != nil {
			return nil, model.NewStoreError("ListCandidateVoters", "candidate", candidateID, err)
		}
		voters = append(voters, voterID)
	}
	if err := rows.Err(); err != nil {
		return nil, model.NewStoreError("ListCandidateVoters", "candidate", candidateID, err)
	}
	return voters, nil
}

// ListCandidates 返回所有候选人，按创建顺序排列
func (r *MySQLRepository) ListCandidates() ([]*model.Candidate, error) {
	query := "SELECT id, name, party, vote_count, created_at, updated_at FROM candidates ORDER BY created_at, id"
	rows, err := r.slaveDB.Query(query)
	if err != nil {
		return nil, model.NewStoreError("ListCandidates", "candidate", "", err)
	}
	defer rows.Close()

	var candidates []*model.Candidate
	for rows.Next() {
		var candidate model.Candidate
		if err := rows.Scan(
			&candidate.ID,
			&candidate.Name,
			&candidate.Party,
			&candidate.VoteCount,
			&candidate.CreatedAt,
			&candidate.UpdatedAt,
		); err != nil {
			return nil, model.NewStoreError("ListCandidates", "candidate", "", err)
		}
		candidates = append(candidates, &candidate)
	}

	if err := rows.Err(); err != nil {
		return nil, model.NewStoreError("ListCandidates", "candidate", "", err)
	}

	return candidates, nil
}

// ListResults 按票数降序返回候选人快照，同票按ID升序保证确定性
func (r *MySQLRepository) ListResults() ([]*model.CandidateResult, error) {
	query := "SELECT id, name, party, vote_count FROM candidates ORDER BY vote_count DESC, id ASC"
	rows, err := r.slaveDB.Query(query)
	if err != nil {
		return nil, model.NewStoreError("ListResults", "candidate", "", err)
	}
	defer rows.Close()

	var results []*model.CandidateResult
	for rows.Next() {
		var result model.CandidateResult
		if err := rows.Scan(&result.ID, &result.Name, &result.Party, &result.VoteCount); err != nil {
			return nil, model.NewStoreError("ListResults", "candidate", "", err)
		}
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, model.NewStoreError("ListResults", "candidate", "", err)
	}

	return results, nil
}

// CreateCandidate 创建候选人
func (r *MySQLRepository) CreateCandidate(candidate *model.Candidate) error {
	query := `INSERT INTO candidates (id, name, party, vote_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.masterDB.Exec(query,
		candidate.ID,
		candidate.Name,
		candidate.Party,
		candidate.VoteCount,
		candidate.CreatedAt,
		candidate.UpdatedAt,
	)
	if err != nil {
		return model.NewStoreError("CreateCandidate", "candidate", candidate.ID, err)
	}
	return nil
}

// UpdateCandidate 更新候选人名称与党派，票数与投票者集合不经此路径修改
func (r *MySQLRepository) UpdateCandidate(candidate *model.Candidate) error {
	result, err := r.masterDB.Exec(
		"UPDATE candidates SET name = ?, party = ?, updated_at = NOW() WHERE id = ?",
		candidate.Name, candidate.Party, candidate.ID)
	if err != nil {
		return model.NewStoreError("UpdateCandidate", "candidate", candidate.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return model.NewStoreError("UpdateCandidate", "candidate", candidate.ID, err)
	}
	if affected == 0 {
		return model.ErrCandidateNotFound
	}
	return nil
}

// DeleteCandidate 删除候选人，投票者集合级联删除，选民的已投票标记保持不变
func (r *MySQLRepository) DeleteCandidate(id string) error {
	result, err := r.masterDB.Exec("DELETE FROM candidates WHERE id = ?", id)
	if err != nil {
		return model.NewStoreError("DeleteCandidate", "candidate", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return model.NewStoreError("DeleteCandidate", "candidate", id, err)
	}
	if affected == 0 {
		return model.ErrCandidateNotFound
	}
	return nil
}

// AddVoterAndRecount 将选民加入投票者集合并由集合重新计算票数
func (r *MySQLRepository) AddVoterAndRecount(candidateID, voterID string) (*model.Candidate, error) {
	tx, err := r.masterDB.Begin()
	if err != nil {
		return nil, model.NewStoreError("AddVoterAndRecount", "candidate", candidateID, err)
	}

	candidate, err := r.addVoterAndRecountTx(tx, candidateID, voterID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, model.NewStoreError("AddVoterAndRecount", "candidate", candidateID, err)
	}
	return candidate, nil
}

func (r *MySQLRepository) addVoterAndRecountTx(tx *sql.Tx, candidateID, voterID string) (*model.Candidate, error) {
	var candidate model.Candidate
	err := tx.QueryRow(
		"SELECT id, name, party, created_at, updated_at FROM candidates WHERE id = ? FOR UPDATE", candidateID).
		Scan(&candidate.ID, &candidate.Name, &candidate.Party, &candidate.CreatedAt, &candidate.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrCandidateNotFound
		}
		return nil, model.NewStoreError("AddVoterAndRecount", "candidate", candidateID, err)
	}

	_, err = tx.Exec(
		"INSERT INTO candidate_voters (candidate_id, voter_id, voted_at) VALUES (?, ?, NOW())",
		candidateID, voterID)
	if err != nil {
		return nil, model.NewStoreError("AddVoterAndRecount", "candidate", candidateID, err)
	}

	// 票数永远由投票者集合重新计算，不做独立自增，避免计数漂移
	_, err = tx.Exec(
		`UPDATE candidates SET vote_count = (SELECT COUNT(*) FROM candidate_voters WHERE candidate_id = ?), updated_at = NOW() WHERE id = ?`,
		candidateID, candidateID)
	if err != nil {
		return nil, model.NewStoreError("AddVoterAndRecount", "candidate", candidateID, err)
	}

	err = tx.QueryRow("SELECT vote_count FROM candidates WHERE id = ?", candidateID).Scan(&candidate.VoteCount)
	if err != nil {
		return nil, model.NewStoreError("AddVoterAndRecount", "candidate", candidateID, err)
	}

	return &candidate, nil
}

// RecordVote 在单个事务内完成投票的检查与写入
// 事务顺序: 锁定选民行 → 资格检查 → 写入投票者集合并重算票数 → CAS已投票标记 → 投票日志
// 选民行锁保证同一选民的并发投票串行化，CAS再兜底一次
func (r *MySQLRepository) RecordVote(voterID, candidateID string) (*model.Candidate, error) {
	tx, err := r.masterDB.Begin()
	if err != nil {
		return nil, model.NewStoreError("RecordVote", "voter", voterID, err)
	}

	// 锁定选民行，同一选民的并发投票在此排队
	var role model.Role
	var hasVoted bool
	err = tx.QueryRow("SELECT role, has_voted FROM voters WHERE id = ? FOR UPDATE", voterID).
		Scan(&role, &hasVoted)
	if err != nil {
		tx.Rollback()
		if err == sql.ErrNoRows {
			return nil, model.ErrVoterNotFound
		}
		return nil, model.NewStoreError("RecordVote", "voter", voterID, err)
	}

	// 管理员不属于选民团
	if role == model.RoleAdmin {
		tx.Rollback()
		return nil, model.ErrForbidden
	}

	if hasVoted {
		tx.Rollback()
		return nil, model.ErrAlreadyVoted
	}

	// 先更新候选人侧，再置选民标记
	candidate, err := r.addVoterAndRecountTx(tx, candidateID, voterID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	result, err := tx.Exec(
		"UPDATE voters SET has_voted = 1, updated_at = NOW() WHERE id = ? AND has_voted = 0", voterID)
	if err != nil {
		tx.Rollback()
		return nil, model.NewStoreError("RecordVote", "voter", voterID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, model.NewStoreError("RecordVote", "voter", voterID, err)
	}
	if affected == 0 {
		tx.Rollback()
		return nil, model.ErrAlreadyVoted
	}

	// 记录投票日志
	_, err = tx.Exec(
		"INSERT INTO vote_logs (voter_id, candidate_id, voted_at) VALUES (?, ?, NOW())",
		voterID, candidateID)
	if err != nil {
		tx.Rollback()
		return nil, model.NewStoreError("RecordVote", "voter", voterID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, model.NewStoreError("RecordVote", "voter", voterID, err)
	}

	return candidate, nil
}

// Close 关闭数据库连接
func (r *MySQLRepository) Close() {
	if r.masterDB != nil {
		r.masterDB.Close()
	}
	if r.slaveDB != nil && r.slaveDB != r.masterDB {
		r.slaveDB.Close()
	}
}
