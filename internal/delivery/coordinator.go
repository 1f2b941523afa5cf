package delivery

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/audio-hub/audio-hub/internal/config"
	"github.com/audio-hub/audio-hub/internal/links"
	"github.com/audio-hub/audio-hub/internal/logging"
	"github.com/audio-hub/audio-hub/internal/origin"
	"github.com/audio-hub/audio-hub/internal/pathing"
	"github.com/audio-hub/audio-hub/internal/sizecache"
	"github.com/audio-hub/audio-hub/internal/storage"
	"github.com/audio-hub/audio-hub/internal/tags"
	"github.com/audio-hub/audio-hub/internal/transcode"
)

// Request 描述一次下载/流式请求。Bitrate 不在允许列表内等价于不转码。
type Request struct {
	Key     string
	ID      string
	Bitrate int
	Stream  bool
}

// Coordinator 编排 路径解析 → 缓存判定 → 回源 → 转码 → 交付 的全流程。
// 所有依赖在启动阶段注入一次，实例为进程级共享；内部没有可变状态，
// 共享缓存（元数据、字节数）自身保证并发安全。
//
// 同一 id 的并发未命中会重复回源——这是接受的竞态：制品内容由 id 确定，
// 重复抓取只是浪费而非错误，后写者的字节与任何写入者等价。
type Coordinator struct {
	cfg        *config.Config
	resolver   *pathing.Resolver
	backend    storage.Backend
	local      *storage.Local
	origin     origin.Resolver
	fetcher    *origin.Fetcher
	transcoder *transcode.Transcoder
	tagger     tags.Writer
	publisher  *links.Publisher
	meta       *origin.MetaCache
	sizes      *sizecache.Cache
	logger     *logrus.Logger
}

// Options 汇总 Coordinator 的全部依赖。Publisher 仅 local 驱动需要。
type Options struct {
	Config     *config.Config
	Resolver   *pathing.Resolver
	Backend    storage.Backend
	Local      *storage.Local
	Origin     origin.Resolver
	Fetcher    *origin.Fetcher
	Transcoder *transcode.Transcoder
	Tagger     tags.Writer
	Publisher  *links.Publisher
	Logger     *logrus.Logger
}

// NewCoordinator 构造请求编排器。
func NewCoordinator(opts Options) *Coordinator {
	return &Coordinator{
		cfg:        opts.Config,
		resolver:   opts.Resolver,
		backend:    opts.Backend,
		local:      opts.Local,
		origin:     opts.Origin,
		fetcher:    opts.Fetcher,
		transcoder: opts.Transcoder,
		tagger:     opts.Tagger,
		publisher:  opts.Publisher,
		meta:       &origin.MetaCache{},
		sizes:      &sizecache.Cache{},
		logger:     opts.Logger,
	}
}

// Handle 执行请求状态机：Requested → CheckRemoteVariant → CheckLocalBase →
// LocalHit | Miss → Convert? → Deliver。
func (c *Coordinator) Handle(ctx context.Context, req Request) (Directive, error) {
	bitrate := req.Bitrate
	if !c.cfg.Encoder.Allowed(bitrate) {
		bitrate = 0
	}
	names := c.resolver.Names(req.ID, bitrate)

	// 远端已有目标变体 → 直接交付公网地址，跳过所有本地工作。
	if c.backend.Kind() == storage.KindS3 && bitrate > 0 {
		if ok, _ := c.backend.Exists(ctx, names.VariantName); ok {
			c.logHit(req, bitrate, "remote_variant")
			return Directive{Kind: KindRemote, Target: c.backend.PublicURL(names.VariantName)}, nil
		}
	}

	cached, err := c.baseExists(ctx, names.Name)
	if err != nil {
		c.logger.WithFields(c.fields(req, bitrate, false)).WithError(err).Warn("缓存探测失败，按未命中处理")
		cached = false
	}

	var item *origin.AudioItem
	if cached {
		c.logHit(req, bitrate, "base")
		item = c.metaForHit(ctx, req.Key, req.ID)
	} else {
		item, err = c.populate(ctx, req, names)
		if err != nil {
			return Directive{}, err
		}
	}

	// 变体请求使用带码率后缀的展示名，基础制品与变体各有独立别名，
	// 交付结果与请求先后顺序无关。
	serveName := names.Name
	display := c.displayName(item, names.Name)
	if bitrate > 0 {
		variantDisplay := pathing.VariantName(display, bitrate)
		if result := c.transcoder.Convert(ctx, names.Name, bitrate, c.writeOptions(variantDisplay)); result.Performed {
			serveName = result.Name
			display = variantDisplay
		}
	}

	return c.deliver(ctx, req, display, serveName)
}

// populate 处理缓存未命中：源站解析 → 回源下载 → 标签写入 → 对象回传。
func (c *Coordinator) populate(ctx context.Context, req Request, names pathing.Names) (*origin.AudioItem, error) {
	fields := c.fields(req, req.Bitrate, false)
	fields["action"] = "populate"

	item, err := c.origin.Resolve(ctx, req.Key, req.ID)
	if err != nil {
		if !errors.Is(err, origin.ErrNotFound) {
			c.logger.WithFields(fields).WithError(err).Warn("源站解析失败")
		}
		return nil, ErrNotFound
	}
	c.meta.Put(req.ID, item)

	// 已优化的源地址假定可以安全直连；代理只在配置启用且未优化时使用。
	useProxy := c.cfg.Fetch.HasProxy() && !item.Optimized

	dst, err := c.local.OpenWrite(ctx, names.Name, storage.WriteOptions{})
	if err != nil {
		c.logger.WithFields(fields).WithError(err).Warn("打开写句柄失败")
		return nil, ErrNotFound
	}
	if err := c.fetcher.Download(ctx, item.SourceURL, dst, useProxy); err != nil {
		return nil, ErrNotFound
	}

	// 标签写入失败只记录，不影响交付。
	if path, pathErr := c.local.FilePath(names.Name); pathErr == nil {
		if err := c.tagger.Write(path, item.Title, item.Artist, c.cfg.Tag.Comment); err != nil {
			c.logger.WithFields(fields).WithError(err).Warn("写入标签失败")
		}
	}

	// 对象后端：把打好标签的基础制品上传到规范对象键。
	if c.backend.Kind() == storage.KindS3 {
		display := c.displayName(item, names.Name)
		if err := c.uploadBase(ctx, names.Name, c.writeOptions(display)); err != nil {
			c.logger.WithFields(fields).WithError(err).Error("上传基础制品失败")
			return nil, ErrInternal
		}
	}

	return item, nil
}

// deliver 产出最终交付指令。
func (c *Coordinator) deliver(ctx context.Context, req Request, display, serveName string) (Directive, error) {
	if req.Stream {
		// 对象驱动下本地工作副本可能缺失（典型场景：进程重启后的远端命中），
		// /files 路由只认工作目录，此时改走对象的公网地址。
		if c.backend.Kind() == storage.KindS3 {
			if ok, _ := c.local.Exists(ctx, serveName); !ok {
				return Directive{Kind: KindRemote, Target: c.backend.PublicURL(serveName)}, nil
			}
		}
		return Directive{Kind: KindStream, Target: "/files/" + serveName}, nil
	}

	if c.backend.Kind() == storage.KindS3 {
		return Directive{Kind: KindRemote, Target: c.backend.PublicURL(serveName)}, nil
	}

	target, err := c.local.FilePath(serveName)
	if err != nil {
		c.logger.WithFields(c.fields(req, req.Bitrate, true)).WithError(err).Error("制品路径非法")
		return Directive{}, ErrInternal
	}

	webPath, err := c.publisher.Publish(c.resolver.HashFolder(req.ID), display, target)
	if err != nil {
		// 强制下载没有备用交付路径，别名失败即内部错误。
		c.logger.WithFields(c.fields(req, req.Bitrate, true)).WithError(err).Error("创建公开别名失败")
		return Directive{}, ErrInternal
	}
	return Directive{Kind: KindAlias, Target: webPath}, nil
}

// Bytes 返回 id 对应制品的字节数，永久记忆。已缓存制品直接取存储长度，
// 否则解析源站并做仅元数据探测（不下载正文）。
func (c *Coordinator) Bytes(ctx context.Context, key, id string) (int64, error) {
	if size, ok := c.sizes.Get(id); ok {
		return size, nil
	}

	names := c.resolver.Names(id, 0)
	if cached, _ := c.baseExists(ctx, names.Name); cached {
		if size, err := c.storedSize(ctx, names.Name); err == nil {
			c.sizes.Put(id, size)
			return size, nil
		}
	}

	item, ok := c.meta.Get(id)
	if !ok {
		resolved, err := c.origin.Resolve(ctx, key, id)
		if err != nil {
			if !errors.Is(err, origin.ErrNotFound) {
				c.logger.WithFields(logrus.Fields{"action": "bytes", "key": key, "id": id}).
					WithError(err).Warn("源站解析失败")
			}
			return 0, ErrNotFound
		}
		c.meta.Put(id, resolved)
		item = resolved
	}

	useProxy := c.cfg.Fetch.HasProxy() && !item.Optimized
	size, err := c.fetcher.Probe(ctx, item.SourceURL, useProxy)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"action": "bytes", "key": key, "id": id}).
			WithError(err).Warn("探测源文件大小失败")
		return 0, ErrNotFound
	}

	c.sizes.Put(id, size)
	return size, nil
}

// baseExists 先查本地工作存储，再查对象后端。
func (c *Coordinator) baseExists(ctx context.Context, name string) (bool, error) {
	if ok, err := c.local.Exists(ctx, name); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	if c.backend.Kind() == storage.KindS3 {
		return c.backend.Exists(ctx, name)
	}
	return false, nil
}

// storedSize 取制品的已存字节数，优先本地。
func (c *Coordinator) storedSize(ctx context.Context, name string) (int64, error) {
	if size, err := c.local.Size(ctx, name); err == nil {
		return size, nil
	}
	if c.backend.Kind() == storage.KindS3 {
		return c.backend.Size(ctx, name)
	}
	return 0, storage.ErrNotFound
}

// metaForHit 命中路径的元数据解析：元数据缓存优先，缺失时回退源站；
// 源站失败不致命，展示名退化为规范文件名。
func (c *Coordinator) metaForHit(ctx context.Context, key, id string) *origin.AudioItem {
	if item, ok := c.meta.Get(id); ok {
		return item
	}

	item, err := c.origin.Resolve(ctx, key, id)
	if err != nil {
		c.logger.WithFields(logrus.Fields{"action": "meta_lookup", "key": key, "id": id}).
			WithError(err).Debug("命中路径元数据解析失败，使用规范文件名")
		return nil
	}
	c.meta.Put(id, item)
	return item
}

// displayName 返回强制下载的展示文件名，元数据缺失时退化为制品文件名。
func (c *Coordinator) displayName(item *origin.AudioItem, fallback string) string {
	if item != nil {
		if name := item.DisplayName(); name != "" {
			return name
		}
	}
	return fallback
}

// writeOptions 组装对象后端使用的交付元数据；基础制品与变体共用同一套。
func (c *Coordinator) writeOptions(displayName string) storage.WriteOptions {
	return storage.WriteOptions{
		ContentType:  "audio/mpeg",
		Filename:     displayName,
		ACL:          c.cfg.S3.ACL,
		StorageClass: c.cfg.S3.StorageClass,
	}
}

// uploadBase 把本地基础制品复制到对象后端。
func (c *Coordinator) uploadBase(ctx context.Context, name string, opts storage.WriteOptions) error {
	src, err := c.local.OpenRead(ctx, name)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := c.backend.OpenWrite(ctx, name, opts)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		if aborter, ok := dst.(storage.Aborter); ok {
			aborter.Abort()
		}
		return err
	}
	return dst.Close()
}

func (c *Coordinator) fields(req Request, bitrate int, hit bool) logrus.Fields {
	return logging.RequestFields(req.Key, req.ID, bitrate, req.Stream, hit)
}

func (c *Coordinator) logHit(req Request, bitrate int, kind string) {
	fields := c.fields(req, bitrate, true)
	fields["action"] = "serve"
	fields["hit_kind"] = kind
	c.logger.WithFields(fields).Debug("缓存命中")
}
