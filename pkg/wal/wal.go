package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀) - 適用於大多數檔案
	FileModeReadOnly fs.FileMode = 0644

	// rwxr-xr-x (擁有者全開，其他人可讀可執行) - 適用於目錄
	FileModeExecutable fs.FileMode = 0755
)

// ErrPoisoned 寫入失敗後無法把檔案還原，之後的寫入一律拒絕
var ErrPoisoned = errors.New("wal poisoned")

// File WAL 底層檔案需要的操作 (*os.File 即符合)
type File interface {
	io.ReadWriteSeeker
	io.Closer
	Sync() error
	Truncate(size int64) error
}

// WAL 以 JSON Lines 格式追加寫入的 Write-Ahead Log
// 每筆寫入後都會 fsync，Write 回傳 nil 即代表資料已落盤
// Write 回傳錯誤時，該筆資料不會留在檔案中
type WAL struct {
	file     File
	mu       sync.Mutex
	poisoned error
}

// NewWAL 開啟或建立一個 WAL 檔案 (上層目錄不存在時自動建立)
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, FileModeExecutable); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return nil, err
	}
	return NewWALFromFile(file), nil
}

// NewWALFromFile 使用已開啟的檔案 (需以 O_APPEND 開啟)
func NewWALFromFile(file File) *WAL {
	return &WAL{file: file}
}

// Write 寫入一筆資料並刷入硬碟
func (w *WAL) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.poisoned != nil {
		return w.poisoned
	}

	// 記下寫入前的檔尾，失敗時截回去
	end, err := w.file.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err := w.file.Write(data); err != nil {
		return w.rollback(end, err)
	}
	if err := w.file.Sync(); err != nil {
		return w.rollback(end, err)
	}
	return nil
}

// rollback 把檔案截回 end，連截斷都失敗時標記為 poisoned
// 呼叫前需持有鎖
func (w *WAL) rollback(end int64, cause error) error {
	if err := w.file.Truncate(end); err != nil {
		w.poisoned = fmt.Errorf("%w: rollback after %v: %v", ErrPoisoned, cause, err)
		return w.poisoned
	}
	if err := w.file.Sync(); err != nil {
		w.poisoned = fmt.Errorf("%w: sync after rollback of %v: %v", ErrPoisoned, cause, err)
		return w.poisoned
	}
	return cause
}

// Sync 強制刷入硬碟
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadAll 讀取所有資料
// callback 是一個函式，接收一筆原始 JSON
// 這樣可以避免一次將所有資料載入記憶體
//
// 檔尾若有寫到一半的紀錄 (程式在寫入中途中斷)，該筆會被略過
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	decoder := json.NewDecoder(w.file)
	var good int64
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				// 截掉殘缺的尾巴，之後的追加才不會接在壞資料後面
				return w.file.Truncate(good)
			}
			return err
		}
		good = decoder.InputOffset()
		if err := callback(raw); err != nil {
			return err
		}
	}
}
