// Package tags 封装音频标签写入协作方。写入失败从不影响交付结果，
// 调用方只记录日志后继续。
package tags

import (
	"github.com/bogem/id3v2"
)

// Writer 把展示元数据写进本地音频文件。
type Writer interface {
	Write(path, title, artist, comment string) error
}

// ID3Writer 基于 id3v2 标签实现 Writer。
type ID3Writer struct{}

// NewID3Writer 构造标签写入器。
func NewID3Writer() *ID3Writer {
	return &ID3Writer{}
}

// Write 打开文件并覆盖 标题/艺术家/评论 三个帧。
func (w *ID3Writer) Write(path, title, artist, comment string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.SetTitle(title)
	tag.SetArtist(artist)

	if comment != "" {
		tag.DeleteFrames(tag.CommonID("Comments"))
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "",
			Text:        comment,
		})
	}

	return tag.Save()
}
