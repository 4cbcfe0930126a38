package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want Branch
	}{
		{name: "plain text", in: Inputs{Type: TypeText}, want: BranchText},
		{name: "ready adapter wins over everything", in: Inputs{HasAdapterID: true, AdapterReady: true, Type: TypeDocument, HasExtractedText: true, RetrievalWanted: true}, want: BranchAdapter},
		{name: "adapter id without ready handle", in: Inputs{HasAdapterID: true, Type: TypeText}, want: BranchText},
		{name: "ready flag without id is ignored", in: Inputs{AdapterReady: true, Type: TypeText}, want: BranchText},
		{name: "document with text", in: Inputs{Type: TypeDocument, HasExtractedText: true, RetrievalWanted: true}, want: BranchDocument},
		{name: "document without text falls through", in: Inputs{Type: TypeDocument}, want: BranchText},
		{name: "document without text but retrieval", in: Inputs{Type: TypeDocument, RetrievalWanted: true}, want: BranchRetrieval},
		{name: "retrieval beats image", in: Inputs{Type: TypeImage, RetrievalWanted: true}, want: BranchRetrieval},
		{name: "image", in: Inputs{Type: TypeImage}, want: BranchImage},
		{name: "image with failed adapter", in: Inputs{HasAdapterID: true, Type: TypeImage}, want: BranchImage},
		{name: "adapter type without id", in: Inputs{Type: TypeAdapter}, want: BranchText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.in))
		})
	}
}

func TestSelectIsPure(t *testing.T) {
	types := []RequestType{TypeText, TypeImage, TypeDocument, TypeAdapter}
	bools := []bool{false, true}

	for _, typ := range types {
		for _, id := range bools {
			for _, ready := range bools {
				for _, text := range bools {
					for _, gate := range bools {
						in := Inputs{HasAdapterID: id, AdapterReady: ready, Type: typ, HasExtractedText: text, RetrievalWanted: gate}
						first := Select(in)
						for i := 0; i < 3; i++ {
							assert.Equal(t, first, Select(in))
						}
						if id && ready {
							assert.Equal(t, BranchAdapter, first)
						}
					}
				}
			}
		}
	}
}

func TestParseType(t *testing.T) {
	assert.Equal(t, TypeImage, ParseType("IMAGE"))
	assert.Equal(t, TypeDocument, ParseType(" document "))
	assert.Equal(t, TypeAdapter, ParseType("adapter"))
	assert.Equal(t, TypeText, ParseType(""))
	assert.Equal(t, TypeText, ParseType("video"))
}
