package cmd

import (
	"context"
	"fmt"
	"log"

	"EmberFM/config"
	"EmberFM/logger"
	"EmberFM/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix    string
	minioRecursive bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看MinIO存储桶中的对象，支持按前缀过滤和递归列出。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")

		// 加载配置
		cfg := config.Load()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		logger.InitLogger(logger.Config{Level: logger.LogLevel(cfg.LogLevel)})

		// 初始化MinIO客户端
		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		objects, err := storage.ListObjects(context.Background(), minioPrefix, minioRecursive)
		if err != nil {
			log.Fatalf("列出对象失败: %v", err)
		}

		var totalSize int64
		for _, obj := range objects {
			fmt.Printf("  %10d  %s\n", obj.Size, obj.Key)
			totalSize += obj.Size
		}
		fmt.Printf("共 %d 个对象, 总大小 %d 字节\n", len(objects), totalSize)
	},
}

func init() {
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "对象前缀过滤")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", false, "递归列出所有对象")
	rootCmd.AddCommand(minioCmd)
}
