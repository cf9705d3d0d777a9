package describe

// DescribeRequest POST /describe-url 请求体
type DescribeRequest struct {
	ImageURL *string `json:"image_url" binding:"required" example:"https://example.com/cat.jpg"`
}

// DescribeResponse 描述结果
type DescribeResponse struct {
	Description string `json:"description"`
}
