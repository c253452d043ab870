package model

// FileRef は外部ストレージに保存されたファイルへの参照を表す。
type FileRef struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// StoredImage はカタログAPIが返す1枚の画像を表す。
// 外部ストアの1行に複数ファイルが含まれる場合、ファイルごとに1つ生成される。
// JSONフィールド名はフロントエンドとの既存契約に合わせている。
type StoredImage struct {
	ID         string `json:"id"`
	Src        string `json:"src"`
	Alt        string `json:"alt"`
	Category   string `json:"category"`
	Reference  string `json:"referencia,omitempty"`
	Brand      string `json:"marca,omitempty"`
	Day        string `json:"dia,omitempty"`
	Month      string `json:"mes,omitempty"`
	Year       string `json:"ano,omitempty"`
	RecordedAt string `json:"dataRegistrada,omitempty"`
}

// ImageEntry は外部ストアに新規作成するカタログエントリを表す。
// 1エントリが複数の画像ファイルを参照できる。
type ImageEntry struct {
	UID        string    `json:"uid"`
	Reference  string    `json:"referencia"`
	Brand      string    `json:"marca"`
	Day        int       `json:"dia"`
	Month      string    `json:"mes"`
	Year       int       `json:"ano"`
	RecordedAt string    `json:"dataRegistrada"`
	Files      []FileRef `json:"files"`
	Alt        string    `json:"alt"`
}
