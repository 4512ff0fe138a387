package photo

import (
	"testing"

	"github.com/matryer/is"
	"google.golang.org/genai"
)

func response(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func TestDataURL(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil response", nil, ""},
		{"no candidates", &genai.GenerateContentResponse{}, ""},
		{"candidate without content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, ""},
		{"text only", response(&genai.Part{Text: "here you go"}), ""},
		{
			name: "declared mime type",
			resp: response(&genai.Part{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: []byte("jpg")}}),
			want: "data:image/jpeg;base64,anBn",
		},
		{
			name: "missing mime type defaults to png",
			resp: response(&genai.Part{InlineData: &genai.Blob{Data: png}}),
			want: "data:image/png;base64,iVBORw==",
		},
		{
			name: "nil and text parts skipped",
			resp: response(nil, &genai.Part{Text: "caption"}, &genai.Part{InlineData: &genai.Blob{MIMEType: "image/webp", Data: []byte("w")}}),
			want: "data:image/webp;base64,dw==",
		},
		{
			name: "first image wins",
			resp: response(
				&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("a")}},
				&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("b")}},
			),
			want: "data:image/png;base64,YQ==",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			is.Equal(dataURL(tt.resp), tt.want)
		})
	}
}
