package dashboard

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxFileSize はアップロードできるファイルの上限
const MaxFileSize = 10 << 20

// スプレッドシートのMIMEタイプ
const (
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEXLS  = "application/vnd.ms-excel"
	MIMECSV  = "text/csv"
)

var spreadsheetMIMEs = map[string]bool{
	MIMEXLSX:          true,
	MIMEXLS:           true,
	MIMECSV:           true,
	"application/csv": true,
}

// 中身から判別できない汎用タイプは拡張子で補う
var genericMIMEs = map[string]bool{
	"application/zip":           true,
	"application/octet-stream":  true,
	"application/x-ole-storage": true,
	"text/plain":                true,
}

var extensionMIMEs = map[string]string{
	".xlsx": MIMEXLSX,
	".xls":  MIMEXLS,
	".csv":  MIMECSV,
}

// FileHandle はアップロード対象のファイル
type FileHandle struct {
	Name string
	MIME string
	Size int64
	Open func() (io.ReadCloser, error)
}

// IsSpreadsheet はMIMEタイプがアップロード対象かを返す
func (f FileHandle) IsSpreadsheet() bool {
	return spreadsheetMIMEs[baseMIME(f.MIME)]
}

// OpenFile はパスからFileHandleを作る。MIMEタイプは中身から判別する。
func OpenFile(path string) (FileHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileHandle{}, fmt.Errorf("ファイルを開けません: %w", err)
	}
	if info.IsDir() {
		return FileHandle{}, fmt.Errorf("%s はディレクトリです", path)
	}
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return FileHandle{}, fmt.Errorf("ファイル形式の判別に失敗: %w", err)
	}
	return FileHandle{
		Name: filepath.Base(path),
		MIME: resolveMIME(detected.String(), path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// NewFileHandle はメモリ上のデータからFileHandleを作る
func NewFileHandle(name string, data []byte) FileHandle {
	return FileHandle{
		Name: name,
		MIME: resolveMIME(mimetype.Detect(data).String(), name),
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func resolveMIME(detected, name string) string {
	base := baseMIME(detected)
	if genericMIMEs[base] {
		if byExt, ok := extensionMIMEs[strings.ToLower(filepath.Ext(name))]; ok {
			return byExt
		}
	}
	return base
}

func baseMIME(m string) string {
	return strings.TrimSpace(strings.SplitN(m, ";", 2)[0])
}
