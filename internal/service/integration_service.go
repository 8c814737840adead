package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"competition/internal/models"
	"competition/internal/repository"
	"competition/pkg/utils"
)

// IntegrationService - привязка внешних счетов к креденшелам трейдеров.
// Меняет только поля счёта; статус синхронизации принадлежит SyncService.
type IntegrationService struct {
	integrations IntegrationStore
	history      HistoryStore
	sync         *SyncService
	cipher       SecretCipher
}

// NewIntegrationService создает сервис; проверка подключения идёт через SyncService
func NewIntegrationService(integrations IntegrationStore, history HistoryStore, sync *SyncService, cipher SecretCipher) *IntegrationService {
	return &IntegrationService{
		integrations: integrations,
		history:      history,
		sync:         sync,
		cipher:       cipher,
	}
}

// Create создаёт интеграцию или заменяет активную для того же креденшела.
// Выполняет:
// 1. Validate адаптера
// 2. Тестовое подключение (если не отключено)
// 3. Шифрование секретов
// 4. Insert-or-replace в БД
func (s *IntegrationService) Create(ctx context.Context, p models.Provider, in models.IntegrationInput) (*models.Integration, bool, error) {
	var errs utils.ValidationErrors
	errs.AddError("credential_id", utils.ValidateCredentialID(in.CredentialID))
	if errs.HasErrors() {
		return nil, false, errs
	}

	creds := models.Credentials{
		AccountID:      strings.TrimSpace(in.AccountID),
		APIToken:       strings.TrimSpace(in.APIToken),
		Password:       in.Password,
		ServerEndpoint: strings.TrimSpace(in.ServerEndpoint),
	}
	if err := s.verify(ctx, p, creds, in.SkipConnectionTest); err != nil {
		return nil, false, err
	}

	integ := &models.Integration{
		Provider:       p,
		CredentialID:   in.CredentialID,
		AccountID:      creds.AccountID,
		ServerEndpoint: creds.ServerEndpoint,
	}
	if err := s.seal(integ, creds); err != nil {
		return nil, false, err
	}

	replaced, err := s.integrations.Upsert(ctx, integ)
	if err != nil {
		if errors.Is(err, repository.ErrIntegrationExists) {
			return nil, false, ErrIntegrationConflict
		}
		return nil, false, fmt.Errorf("save integration: %w", err)
	}

	utils.FromContext(ctx).Info("integration linked",
		utils.Provider(string(p)),
		utils.IntegrationID(integ.ID),
		utils.CredentialID(integ.CredentialID),
		utils.AccountID(integ.AccountID),
		utils.Bool("replaced", replaced),
	)
	return integ, replaced, nil
}

// Get возвращает интеграцию, включая удалённые
func (s *IntegrationService) Get(ctx context.Context, p models.Provider, id int) (*models.Integration, error) {
	integ, err := s.integrations.GetByID(ctx, p, id)
	if err != nil {
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			return nil, ErrIntegrationNotFound
		}
		return nil, err
	}
	return integ, nil
}

// List возвращает все интеграции провайдера
func (s *IntegrationService) List(ctx context.Context, p models.Provider) ([]*models.Integration, error) {
	list, err := s.integrations.List(ctx, p)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.Integration{}
	}
	return list, nil
}

// Update применяет частичное обновление.
// Изменение полей подключения повторно проверяется адаптером.
func (s *IntegrationService) Update(ctx context.Context, p models.Provider, id int, patch models.IntegrationPatch) (*models.Integration, error) {
	if patch.IsEmpty() {
		return nil, ErrNothingToUpdate
	}

	integ, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if patch.TouchesCredentials() {
		creds, err := s.sync.credentials(integ)
		if err != nil {
			return nil, err
		}
		if patch.AccountID != nil {
			creds.AccountID = strings.TrimSpace(*patch.AccountID)
		}
		if patch.APIToken != nil {
			creds.APIToken = strings.TrimSpace(*patch.APIToken)
		}
		if patch.Password != nil {
			creds.Password = *patch.Password
		}
		if patch.ServerEndpoint != nil {
			creds.ServerEndpoint = strings.TrimSpace(*patch.ServerEndpoint)
		}

		if err := s.verify(ctx, p, creds, patch.SkipConnectionTest); err != nil {
			return nil, err
		}

		integ.AccountID = creds.AccountID
		integ.ServerEndpoint = creds.ServerEndpoint
		if err := s.seal(integ, creds); err != nil {
			return nil, err
		}
	}
	if patch.IsActive != nil {
		integ.IsActive = *patch.IsActive
	}

	if err := s.integrations.UpdateAccount(ctx, integ); err != nil {
		switch {
		case errors.Is(err, repository.ErrIntegrationNotFound):
			return nil, ErrIntegrationNotFound
		case errors.Is(err, repository.ErrIntegrationExists):
			return nil, ErrIntegrationConflict
		}
		return nil, fmt.Errorf("update integration: %w", err)
	}

	utils.FromContext(ctx).Info("integration updated",
		utils.Provider(string(p)),
		utils.IntegrationID(integ.ID),
		utils.Bool("credentials_changed", patch.TouchesCredentials()),
	)
	return integ, nil
}

// Delete - мягкое удаление; история сохраняется
func (s *IntegrationService) Delete(ctx context.Context, p models.Provider, id int) error {
	if err := s.integrations.Deactivate(ctx, p, id); err != nil {
		if errors.Is(err, repository.ErrIntegrationNotFound) {
			return ErrIntegrationNotFound
		}
		return err
	}
	utils.FromContext(ctx).Info("integration deactivated", utils.Provider(string(p)), utils.IntegrationID(id))
	return nil
}

// History возвращает последние попытки синхронизации интеграции
func (s *IntegrationService) History(ctx context.Context, p models.Provider, id, limit int) ([]*models.SyncHistory, error) {
	if _, err := s.Get(ctx, p, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > repository.DefaultHistoryLimit {
		limit = repository.DefaultHistoryLimit
	}

	items, err := s.history.ListByIntegration(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.SyncHistory{}
	}
	return items, nil
}

// ============ Хелперы ============

// verify проверяет поля адаптером и, если не отключено, подключение
func (s *IntegrationService) verify(ctx context.Context, p models.Provider, creds models.Credentials, skipTest bool) error {
	adapter, err := s.sync.adapter(p)
	if err != nil {
		return err
	}
	if err := adapter.Validate(creds); err != nil {
		return err
	}
	if skipTest {
		return nil
	}

	result, err := s.sync.TestConnection(ctx, p, creds)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", ErrConnectionFailed, result.Message)
	}
	return nil
}

// seal шифрует секреты в интеграцию
func (s *IntegrationService) seal(integ *models.Integration, creds models.Credentials) error {
	token, err := s.cipher.Seal(creds.APIToken)
	if err != nil {
		return fmt.Errorf("encrypt api token: %w", err)
	}
	password, err := s.cipher.Seal(creds.Password)
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}
	integ.APIToken = token
	integ.Password = password
	return nil
}
