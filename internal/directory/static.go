package directory

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// StaticDirectory is an in-process collaborator implementation used for
// development and tests. Managers are resolved per owner; pool roles resolve
// to a single configured identity.
type StaticDirectory struct {
	mu       sync.RWMutex
	subjects map[string]*Subject
	managers map[string]string // owner id -> manager id
	roles    map[string]string // role -> approver id
	logger   *zap.Logger
}

// NewStaticDirectory creates an empty static directory.
func NewStaticDirectory(logger *zap.Logger) *StaticDirectory {
	return &StaticDirectory{
		subjects: make(map[string]*Subject),
		managers: make(map[string]string),
		roles:    make(map[string]string),
		logger:   logger,
	}
}

// AddSubject registers a travel request.
func (d *StaticDirectory) AddSubject(subject *Subject) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subjects[subject.ID] = subject
}

// SetManager maps an employee to their manager.
func (d *StaticDirectory) SetManager(ownerID, managerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.managers[ownerID] = managerID
}

// SetRoleApprover maps a pool role to its approver identity.
func (d *StaticDirectory) SetRoleApprover(role, approverID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[role] = approverID
}

// FetchSubject implements SubjectService.
func (d *StaticDirectory) FetchSubject(ctx context.Context, subjectID string) (*Subject, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	subject, ok := d.subjects[subjectID]
	if !ok {
		return nil, ErrSubjectNotFound
	}
	copied := *subject
	return &copied, nil
}

// UpdateSubjectStatus implements SubjectService. The static directory only
// logs the write-back.
func (d *StaticDirectory) UpdateSubjectStatus(ctx context.Context, subjectID, status string) error {
	d.logger.Info("Subject status updated",
		zap.String("subject_id", subjectID),
		zap.String("status", status))
	return nil
}

// ResolveApprover implements ApproverDirectory.
func (d *StaticDirectory) ResolveApprover(ctx context.Context, role, ownerID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if managerID, ok := d.managers[ownerID]; ok && role == "MANAGER" {
		return managerID, nil
	}
	if approverID, ok := d.roles[role]; ok {
		return approverID, nil
	}
	return "", ErrApproverNotFound
}

// Notify implements Notifier by logging the delivery.
func (d *StaticDirectory) Notify(ctx context.Context, approverID, subjectID, kind, message string) error {
	d.logger.Info("Notification sent",
		zap.String("approver_id", approverID),
		zap.String("subject_id", subjectID),
		zap.String("kind", kind))
	return nil
}
