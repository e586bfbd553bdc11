package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectURLPrefersPublicBase(t *testing.T) {
	o := &OSS{
		bucketName:    "pickitchen",
		endpoint:      "oss-cn-hangzhou.aliyuncs.com",
		publicBaseURL: "https://cdn.example.com/",
	}
	assert.Equal(t, "https://cdn.example.com/results/1.mp4", o.ObjectURL("results/1.mp4"))
}

func TestObjectURLVirtualHostedStyle(t *testing.T) {
	o := &OSS{
		bucketName: "pickitchen",
		endpoint:   "oss-cn-hangzhou.aliyuncs.com",
	}
	assert.Equal(t,
		"https://pickitchen.oss-cn-hangzhou.aliyuncs.com/uploads/a.jpg",
		o.ObjectURL("uploads/a.jpg"))
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "https://oss-cn-hangzhou.aliyuncs.com", normalizeEndpoint(" oss-cn-hangzhou.aliyuncs.com "))
	assert.Equal(t, "http://localhost:9000", normalizeEndpoint("http://localhost:9000"))
}
