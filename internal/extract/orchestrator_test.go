package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_scholar/internal/engine"
	"github.com/anatolykoptev/go_scholar/internal/engine/files"
	"github.com/anatolykoptev/go_scholar/internal/spreadsheet"
)

type fakeFiles struct {
	text  string
	err   error
	block bool
	got   string
}

func (f *fakeFiles) Extract(ctx context.Context, raw []byte, fileName, mimeType string, progress files.ProgressFunc) (string, error) {
	f.got = fileName
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	progress.Report("Reading page", 1, 1)
	return f.text, f.err
}

type fakeVideo struct {
	res *engine.VideoExtractionResult
	err error
}

func (f *fakeVideo) Extract(context.Context, string) (*engine.VideoExtractionResult, error) {
	return f.res, f.err
}

type fakeDrive struct {
	file *spreadsheet.DriveFile
	err  error
}

func (f *fakeDrive) FetchFileData(context.Context, string) (*spreadsheet.DriveFile, error) {
	return f.file, f.err
}

func link(u string) engine.SourceDescriptor {
	return engine.SourceDescriptor{Method: engine.MethodLink, Value: u}
}

func TestDetectSourceType(t *testing.T) {
	tests := []struct {
		name    string
		d       engine.SourceDescriptor
		want    SourceType
		wantErr bool
	}{
		{"upload", engine.SourceDescriptor{Method: engine.MethodUpload, RawBytes: []byte("x"), FileName: "a.pdf"}, SourceFile, false},
		{"upload without bytes", engine.SourceDescriptor{Method: engine.MethodUpload}, "", true},
		{"drive", link("https://drive.google.com/file/d/abc/view"), SourceDrive, false},
		{"docs", link("https://docs.google.com/document/d/abc/edit"), SourceDrive, false},
		{"youtube", link("https://www.youtube.com/watch?v=dQw4w9WgXcQ"), SourceVideo, false},
		{"short video link", link("https://youtu.be/dQw4w9WgXcQ"), SourceVideo, false},
		{"web", link("https://example.org/article"), SourceWeb, false},
		{"not a url", link("just some words"), "", true},
		{"ftp", link("ftp://example.org/file"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectSourceType(tt.d)
			if tt.wantErr {
				f, ok := engine.AsFailure(err)
				require.True(t, ok, "want failure, got %v", err)
				assert.Equal(t, engine.KindUnsupportedFormat, f.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunFile(t *testing.T) {
	ff := &fakeFiles{text: "Slide 1\nSlide 2"}
	o := New(Deps{Files: ff})

	var stages []string
	out := o.Run(context.Background(), engine.SourceDescriptor{
		Method: engine.MethodUpload, RawBytes: []byte("pk"), FileName: "deck.pptx",
	}, func(p files.Progress) { stages = append(stages, p.String()) })

	require.Nil(t, out.Failure)
	assert.Equal(t, SourceFile, out.Type)
	assert.Equal(t, "deck", out.Result.Title)
	assert.Equal(t, "Slide 1\nSlide 2", out.Result.Text)
	assert.False(t, out.OfferManualEntry)
	assert.Equal(t, []string{"Reading page 1 of 1"}, stages)
}

func TestRunFileEmptyTextOffersManualEntry(t *testing.T) {
	o := New(Deps{Files: &fakeFiles{}})
	out := o.Run(context.Background(), engine.SourceDescriptor{
		Method: engine.MethodUpload, RawBytes: []byte("??"), FileName: "blob.bin",
	}, nil)
	require.NotNil(t, out.Result)
	assert.Empty(t, out.Result.Text)
	assert.NotEmpty(t, out.Result.Warnings)
	assert.True(t, out.OfferManualEntry)
}

func TestRunFileParseError(t *testing.T) {
	o := New(Deps{Files: &fakeFiles{err: engine.ParseFailure("corrupt pdf", nil)}})
	out := o.Run(context.Background(), engine.SourceDescriptor{
		Method: engine.MethodUpload, RawBytes: []byte("%PDF"), FileName: "a.pdf",
	}, nil)
	require.NotNil(t, out.Failure)
	assert.Nil(t, out.Result)
	assert.Equal(t, engine.KindParseError, out.Failure.Kind)
	assert.True(t, out.OfferManualEntry)
}

func TestRunFileHonorsCancellation(t *testing.T) {
	o := New(Deps{Files: &fakeFiles{block: true}})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := o.Run(ctx, engine.SourceDescriptor{
		Method: engine.MethodUpload, RawBytes: []byte("x"), FileName: "scan.png",
	}, nil)
	require.NotNil(t, out.Failure)
	assert.Equal(t, engine.KindTimeout, out.Failure.Kind)
}

func TestRunWeb(t *testing.T) {
	o := New(Deps{Web: func(_ context.Context, u string) (*engine.WebPage, error) {
		return &engine.WebPage{URL: u, Title: "Reef", Byline: "A. Writer", SiteName: "Ocean Notes", Text: "Body."}, nil
	}})
	out := o.Run(context.Background(), link("https://example.org/reef"), nil)
	require.Nil(t, out.Failure)
	assert.Equal(t, "A. Writer", out.Result.Author)
	assert.Equal(t, "Ocean Notes", out.Result.SiteName)
	assert.Equal(t, "Body.", out.Result.Text)
}

func TestRunDocumentLink(t *testing.T) {
	ff := &fakeFiles{text: "paper body"}
	var webCalled bool
	o := New(Deps{
		Files: ff,
		Web: func(context.Context, string) (*engine.WebPage, error) {
			webCalled = true
			return nil, errors.New("unexpected")
		},
		Download: func(_ context.Context, u string) (*engine.RemoteFile, error) {
			return &engine.RemoteFile{Data: []byte("%PDF"), FileName: "reef.pdf", MIMEType: "application/pdf"}, nil
		},
	})
	out := o.Run(context.Background(), link("https://example.org/papers/reef.pdf?dl=1"), nil)
	require.Nil(t, out.Failure)
	assert.False(t, webCalled)
	assert.Equal(t, SourceWeb, out.Type)
	assert.Equal(t, "reef.pdf", ff.got)
	assert.Equal(t, "reef", out.Result.Title)
	assert.Equal(t, "paper body", out.Result.Text)
	assert.Equal(t, "https://example.org/papers/reef.pdf?dl=1", out.Result.Source)
}

func TestRunDocumentLinkBlocked(t *testing.T) {
	o := New(Deps{Files: &fakeFiles{}, Download: func(context.Context, string) (*engine.RemoteFile, error) {
		return nil, engine.Blocked("403", nil)
	}})
	out := o.Run(context.Background(), link("https://example.org/private.xlsx"), nil)
	require.NotNil(t, out.Failure)
	assert.Equal(t, engine.KindBlocked, out.Failure.Kind)
	assert.True(t, out.OfferManualEntry)
}

func TestRunWebBlocked(t *testing.T) {
	o := New(Deps{Web: func(context.Context, string) (*engine.WebPage, error) {
		return nil, engine.Blocked("403 from example.org", nil)
	}})
	out := o.Run(context.Background(), link("https://example.org/wall"), nil)
	require.NotNil(t, out.Failure)
	assert.Equal(t, engine.KindBlocked, out.Failure.Kind)
	assert.True(t, out.OfferManualEntry)
}

func TestRunWebNotFoundNoManualEntry(t *testing.T) {
	o := New(Deps{Web: func(context.Context, string) (*engine.WebPage, error) {
		return nil, engine.NotFound("gone", false, nil)
	}})
	out := o.Run(context.Background(), link("https://example.org/gone"), nil)
	require.NotNil(t, out.Failure)
	assert.False(t, out.OfferManualEntry)
}

func TestRunVideo(t *testing.T) {
	tests := []struct {
		name       string
		res        *engine.VideoExtractionResult
		wantText   string
		wantManual bool
		wantStruct bool
	}{
		{
			name: "transcript",
			res: &engine.VideoExtractionResult{VideoID: "dQw4w9WgXcQ", HasTranscript: true, Transcript: "[0:00] hi",
				VideoMetadata: engine.VideoMetadata{Title: "T", Author: "A"}},
			wantText:   "[0:00] hi",
			wantStruct: true,
		},
		{
			name: "no captions falls back to description",
			res: &engine.VideoExtractionResult{VideoID: "dQw4w9WgXcQ",
				VideoMetadata: engine.VideoMetadata{Title: "T", Author: "A", Description: "About reefs."}},
			wantText: "About reefs.",
		},
		{
			name: "blocked captions offer manual entry",
			res: &engine.VideoExtractionResult{VideoID: "dQw4w9WgXcQ",
				VideoMetadata:     engine.VideoMetadata{Title: "T", Author: "A", Description: "About reefs."},
				TranscriptFailure: engine.Blocked("captions unreachable", nil)},
			wantText:   "About reefs.",
			wantManual: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(Deps{Video: &fakeVideo{res: tt.res}})
			out := o.Run(context.Background(), link("https://youtu.be/dQw4w9WgXcQ"), nil)
			require.Nil(t, out.Failure)
			assert.Equal(t, SourceVideo, out.Type)
			assert.Equal(t, tt.wantText, out.Result.Text)
			assert.Equal(t, tt.wantStruct, out.Result.HasStructuredTranscript)
			assert.Equal(t, tt.wantManual, out.OfferManualEntry)
			assert.Same(t, tt.res, out.Video)
		})
	}
}

func TestRunDrive(t *testing.T) {
	ff := &fakeFiles{text: "drive text"}
	o := New(Deps{Files: ff, Drive: &fakeDrive{file: &spreadsheet.DriveFile{Data: []byte("x"), FileName: "report.docx"}}})
	out := o.Run(context.Background(), link("https://drive.google.com/file/d/abc/view"), nil)
	require.Nil(t, out.Failure)
	assert.Equal(t, SourceDrive, out.Type)
	assert.Equal(t, "report.docx", ff.got)
	assert.Equal(t, "drive text", out.Result.Text)
	assert.Equal(t, "https://drive.google.com/file/d/abc/view", out.Result.Source)
}

func TestRunDriveFailures(t *testing.T) {
	tests := []struct {
		name  string
		drive DriveFetcher
		want  engine.FailureKind
	}{
		{"no collaborator", nil, engine.KindUnsupportedFormat},
		{"not configured", &fakeDrive{err: spreadsheet.ErrNotConfigured}, engine.KindUnsupportedFormat},
		{"timeout", &fakeDrive{err: context.DeadlineExceeded}, engine.KindTimeout},
		{"no access", &fakeDrive{err: errors.New("error no access")}, engine.KindBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(Deps{Files: &fakeFiles{}, Drive: tt.drive})
			out := o.Run(context.Background(), link("https://docs.google.com/document/d/abc"), nil)
			require.NotNil(t, out.Failure)
			assert.Equal(t, tt.want, out.Failure.Kind)
			assert.True(t, out.OfferManualEntry)
		})
	}
}

func TestRunUnsupported(t *testing.T) {
	out := New(Deps{}).Run(context.Background(), link("mailto:someone@example.org"), nil)
	require.NotNil(t, out.Failure)
	assert.Equal(t, engine.KindUnsupportedFormat, out.Failure.Kind)
	assert.True(t, out.OfferManualEntry)
}

func TestManualEntry(t *testing.T) {
	r, err := ManualEntry("  Pasted  ", "line one\r\n\n\n\nline   two  ")
	require.NoError(t, err)
	assert.Equal(t, "Pasted", r.Title)
	assert.Equal(t, "line one\n\nline two", r.Text)

	_, err = ManualEntry("t", " \n ")
	assert.Error(t, err)
}
