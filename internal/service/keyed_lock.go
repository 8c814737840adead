package service

import "sync"

// keyedLock сериализует попытки синхронизации одной интеграции.
// Разные ключи друг друга не блокируют; неиспользуемые записи удаляются.
type keyedLock struct {
	mu    sync.Mutex
	locks map[int]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[int]*refMutex)}
}

// Lock захватывает блокировку ключа и возвращает функцию освобождения
func (k *keyedLock) Lock(key int) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.mu.Lock()

	return func() {
		m.mu.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// size - число ключей с ожидающими или активными владельцами
func (k *keyedLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
