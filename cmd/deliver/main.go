// deliver 将一封邮件写入已存在的临时地址，用于本地联调收件箱接口。
//
// 邮件内容由参数直接给出，不解析原始邮件结构；-raw 指定的文件按原样保存为原始邮件。
package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/inbox/internal/app"
	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/logger"
	"tempmail/inbox/internal/pool"
	"tempmail/inbox/internal/service"
)

// options 命令行参数
type options struct {
	from        string
	to          string
	subject     string
	text        string
	htmlFile    string
	rawFile     string
	attachments []string
	dkim        string
	spf         string
	dmarc       string
}

func main() {
	var opts options
	flag.StringVar(&opts.from, "from", "sender@example.com", "发件人地址")
	flag.StringVar(&opts.to, "to", "", "收件地址，多个用逗号分隔")
	flag.StringVar(&opts.subject, "subject", "", "邮件主题")
	flag.StringVar(&opts.text, "text", "", "纯文本正文")
	flag.StringVar(&opts.htmlFile, "html", "", "HTML 正文文件路径")
	flag.StringVar(&opts.rawFile, "raw", "", "原始邮件文件路径，留空时根据参数生成")
	flag.Func("attach", "附件文件路径，可重复指定", func(path string) error {
		opts.attachments = append(opts.attachments, path)
		return nil
	})
	flag.StringVar(&opts.dkim, "dkim", "", "DKIM 结果: pass、fail 或留空")
	flag.StringVar(&opts.spf, "spf", "", "SPF 结果: pass、fail、softfail、neutral、none、temperror、permerror 或留空")
	flag.StringVar(&opts.dmarc, "dmarc", "", "DMARC 结果: pass、fail、none 或留空")
	flag.Parse()

	if strings.TrimSpace(opts.to) == "" {
		fmt.Println("用法:")
		fmt.Println("  go run ./cmd/deliver -to=alice@tempmail.local -subject=hello -text='hi there' -attach=report.pdf")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("错误: 加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Type == "" {
		fmt.Println("错误: 需要配置 TEMPMAIL_DATABASE_TYPE 与 TEMPMAIL_DATABASE_DSN，内存存储无法跨进程投递")
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		fmt.Printf("错误: 初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	input, err := buildInput(opts, os.ReadFile)
	if err != nil {
		fmt.Printf("错误: %v\n", err)
		os.Exit(1)
	}

	store, err := app.OpenStore(cfg.Database, log)
	if err != nil {
		fmt.Printf("错误: 无法连接数据库: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	workers := pool.NewWorkerPool(cfg.Delivery.Workers, cfg.Delivery.QueueSize, log)
	workers.Start(context.Background())

	delivery := service.NewDeliveryService(store, cfg.Address, cfg.Validation, workers, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	email, err := delivery.Deliver(ctx, input)
	// 等待邮件数量裁剪完成
	workers.Stop()
	if err != nil {
		fmt.Printf("错误: 投递失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ 邮件已投递: %s (%d 字节, %d 个附件)\n", email.ID, email.SizeBytes, len(input.Attachments))
	log.Debug("delivered from command line", zap.String("email_id", email.ID))
}

// buildInput 根据参数组装投递内容
func buildInput(opts options, readFile func(string) ([]byte, error)) (service.DeliverInput, error) {
	dkim, err := parseDKIM(opts.dkim)
	if err != nil {
		return service.DeliverInput{}, err
	}

	var recipients []string
	for _, recipient := range strings.Split(opts.to, ",") {
		if recipient = strings.TrimSpace(recipient); recipient != "" {
			recipients = append(recipients, recipient)
		}
	}
	if len(recipients) == 0 {
		return service.DeliverInput{}, fmt.Errorf("缺少收件地址")
	}

	input := service.DeliverInput{
		MessageID:  fmt.Sprintf("<%s@tempmail.local>", uuid.NewString()),
		From:       opts.from,
		To:         recipients[0],
		Recipients: recipients,
		DKIM:       dkim,
		SPF:        domain.SPFResult(strings.ToLower(strings.TrimSpace(opts.spf))),
		DMARC:      domain.DMARCResult(strings.ToLower(strings.TrimSpace(opts.dmarc))),
	}
	if opts.subject != "" {
		subject := opts.subject
		input.Subject = &subject
	}
	if opts.text != "" {
		text := opts.text
		input.BodyPlain = &text
	}
	if opts.htmlFile != "" {
		data, err := readFile(opts.htmlFile)
		if err != nil {
			return service.DeliverInput{}, fmt.Errorf("读取 HTML 正文失败: %w", err)
		}
		html := string(data)
		input.BodyHTML = &html
	}
	for _, path := range opts.attachments {
		data, err := readFile(path)
		if err != nil {
			return service.DeliverInput{}, fmt.Errorf("读取附件失败: %w", err)
		}
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		input.Attachments = append(input.Attachments, service.AttachmentInput{
			Filename:    filepath.Base(path),
			ContentType: contentType,
			Data:        data,
		})
	}

	input.RawHeaders = fmt.Sprintf("Message-ID: %s\nFrom: %s\nTo: %s\nSubject: %s\n",
		input.MessageID, input.From, strings.Join(recipients, ", "), opts.subject)
	if opts.rawFile != "" {
		raw, err := readFile(opts.rawFile)
		if err != nil {
			return service.DeliverInput{}, fmt.Errorf("读取原始邮件失败: %w", err)
		}
		input.Raw = raw
	} else {
		input.Raw = []byte(strings.ReplaceAll(input.RawHeaders, "\n", "\r\n") + "\r\n" + opts.text)
	}
	return input, nil
}

func parseDKIM(value string) (domain.DKIMStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return domain.DKIMUnchecked, nil
	case "pass":
		return domain.DKIMPass, nil
	case "fail":
		return domain.DKIMFail, nil
	default:
		return domain.DKIMUnchecked, fmt.Errorf("不支持的 DKIM 结果 '%s'", value)
	}
}
